package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raushankrgupta/meal-planner/capture"
	"github.com/raushankrgupta/meal-planner/models"
	"github.com/raushankrgupta/meal-planner/utils"
)

const a4Height = 297.0

func TestPaginate(t *testing.T) {
	tests := []struct {
		name string
		img  float64
		want []float64
	}{
		{"shorter than a page", 100, []float64{0}},
		{"exactly one page", a4Height, []float64{0}},
		{"just over one page", a4Height + 0.1, []float64{0, -a4Height}},
		{"exactly two pages", 2 * a4Height, []float64{0, -a4Height}},
		{"two and a bit", 2*a4Height + 1, []float64{0, -a4Height, -2 * a4Height}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Paginate(tt.img, a4Height))
		})
	}
}

func TestPaginate_CoversImage(t *testing.T) {
	f := func(raw uint32) bool {
		img := float64(raw%100000) / 10
		offsets := Paginate(img, a4Height)
		if len(offsets) == 0 || offsets[0] != 0 {
			return false
		}
		for i, y := range offsets {
			if y != -float64(i)*a4Height {
				return false
			}
		}
		// last page starts inside the image, and together they reach its end
		last := -offsets[len(offsets)-1]
		return (len(offsets) == 1 || last < img) && last+a4Height >= img
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestScaledHeight(t *testing.T) {
	assert.InDelta(t, 420.0, ScaledHeight(100, 200, 210), 1e-9)
	assert.Zero(t, ScaledHeight(0, 200, 210))
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "weekly_meal_plan_2024-03-07.pdf", Filename(now))
}

type fakeRaster struct {
	img   []byte
	err   error
	html  string
	calls int
}

func (f *fakeRaster) Name() string { return "fake" }

func (f *fakeRaster) Rasterize(_ context.Context, html, _ string) ([]byte, error) {
	f.calls++
	f.html = html
	return f.img, f.err
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func renderPlan(plan *models.MealPlan) (string, error) {
	var b strings.Builder
	b.WriteString(`<html><body><div id="plan-view">`)
	for _, d := range plan.WeekPlan {
		b.WriteString("<h3>" + d.Day + "</h3>")
		for _, m := range d.Meals {
			for _, it := range m.Items {
				b.WriteString(`<img src="` + it.Image + `">`)
			}
		}
	}
	b.WriteString(`</div></body></html>`)
	return b.String(), nil
}

func samplePlan() *models.MealPlan {
	return &models.MealPlan{WeekPlan: []models.Day{{
		Day: "Monday",
		Meals: map[string]*models.Meal{
			models.MealLunch: {Items: []models.FoodItem{{ID: "1", Name: "Dal", Image: "https://img.example.com/dal.jpg"}}},
		},
	}}}
}

func newExporter(r *fakeRaster, acquired *int) *Exporter {
	e := New(renderPlan, func() (capture.Rasterizer, error) {
		*acquired++
		return r, nil
	})
	e.InlineImages = func(context.Context, []string) map[string]string { return nil }
	return e
}

func TestExport_NoPlanIsNoop(t *testing.T) {
	r := &fakeRaster{}
	acquired := 0
	e := newExporter(r, &acquired)

	doc, err := e.Export(context.Background(), nil, time.Now())
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Nil(t, doc)
	assert.Zero(t, acquired)
	assert.Zero(t, r.calls)
}

func TestExport_MissingSubtreeIsNoop(t *testing.T) {
	r := &fakeRaster{}
	acquired := 0
	e := New(func(*models.MealPlan) (string, error) { return "<html><body></body></html>", nil },
		func() (capture.Rasterizer, error) { acquired++; return r, nil })

	_, err := e.Export(context.Background(), samplePlan(), time.Now())
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Zero(t, acquired)
}

func TestExport_PageCount(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		pages int
	}{
		{"fits one page", 100, 100, 1},
		{"needs two pages", 100, 200, 2},
		{"needs three pages", 100, 290, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRaster{img: pngOf(t, tt.w, tt.h)}
			acquired := 0
			e := newExporter(r, &acquired)

			now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.Local)
			doc, err := e.Export(context.Background(), samplePlan(), now)
			require.NoError(t, err)
			assert.Equal(t, tt.pages, doc.Pages)
			assert.Equal(t, "weekly_meal_plan_2024-01-02.pdf", doc.Filename)
			assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
		})
	}
}

func TestExport_AcquiresOnce(t *testing.T) {
	r := &fakeRaster{img: pngOf(t, 10, 10)}
	acquired := 0
	e := newExporter(r, &acquired)

	for i := 0; i < 3; i++ {
		_, err := e.Export(context.Background(), samplePlan(), time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 3, r.calls)
}

func TestExport_CaptureFailure(t *testing.T) {
	r := &fakeRaster{err: errors.New("browser crashed")}
	acquired := 0
	e := newExporter(r, &acquired)
	plan := samplePlan()

	doc, err := e.Export(context.Background(), plan, time.Now())
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ErrExportFailed)
	assert.Contains(t, err.Error(), "browser crashed")
	assert.Equal(t, "Dal", plan.WeekPlan[0].Meals[models.MealLunch].Items[0].Name)
}

func TestExport_AcquireFailure(t *testing.T) {
	e := New(renderPlan, func() (capture.Rasterizer, error) { return nil, errors.New("no chrome") })
	e.InlineImages = nil

	_, err := e.Export(context.Background(), samplePlan(), time.Now())
	assert.ErrorIs(t, err, ErrExportFailed)
}

func TestExport_BadImage(t *testing.T) {
	r := &fakeRaster{img: []byte("garbage")}
	acquired := 0
	_, err := newExporter(r, &acquired).Export(context.Background(), samplePlan(), time.Now())
	assert.ErrorIs(t, err, ErrExportFailed)
}

func TestExport_InlinesImages(t *testing.T) {
	r := &fakeRaster{img: pngOf(t, 10, 10)}
	acquired := 0
	e := newExporter(r, &acquired)
	var asked []string
	e.InlineImages = func(_ context.Context, urls []string) map[string]string {
		asked = urls
		return map[string]string{"https://img.example.com/dal.jpg": "data:image/jpeg;base64,AAAA"}
	}

	_, err := e.Export(context.Background(), samplePlan(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example.com/dal.jpg"}, asked)
	assert.Contains(t, r.html, `src="data:image/jpeg;base64,AAAA"`)
	assert.NotContains(t, r.html, "img.example.com")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "exports/u1/weekly_meal_plan_2024-01-02.pdf", Key(models.User{ID: "u1"}, "weekly_meal_plan_2024-01-02.pdf"))
	assert.Equal(t, "exports/anonymous/x.pdf", Key(models.User{}, "x.pdf"))
}

func TestS3Sink(t *testing.T) {
	var gotKey, gotType string
	var gotLen int
	s := &S3Sink{
		Upload: func(_ context.Context, body *bytes.Reader, key, contentType string) (string, error) {
			gotKey, gotType, gotLen = key, contentType, body.Len()
			return key, nil
		},
		Presign: func(_ context.Context, key string) (string, error) { return "https://signed/" + key, nil },
	}
	doc := &Document{Filename: "a.pdf", Data: []byte("%PDF-1.3")}
	require.NoError(t, s.Deliver(context.Background(), models.User{ID: "u9"}, doc))
	assert.Equal(t, "exports/u9/a.pdf", gotKey)
	assert.Equal(t, "application/pdf", gotType)
	assert.Equal(t, len(doc.Data), gotLen)
}

func TestMailSink(t *testing.T) {
	var to string
	var att utils.Attachment
	m := &MailSink{Send: func(_, toEmail, _, _, _ string, attachments ...utils.Attachment) error {
		to = toEmail
		att = attachments[0]
		return nil
	}}
	doc := &Document{Filename: "a.pdf", Data: []byte("%PDF")}
	require.NoError(t, m.Deliver(context.Background(), models.User{Email: "chef@example.com"}, doc))
	assert.Equal(t, "chef@example.com", to)
	assert.Equal(t, "a.pdf", att.Filename)

	assert.Error(t, m.Deliver(context.Background(), models.User{}, doc))
}

type failingSink struct{ calls int }

func (f *failingSink) Name() string { return "failing" }
func (f *failingSink) Deliver(context.Context, models.User, *Document) error {
	f.calls++
	return errors.New("down")
}

func TestDeliver_ContinuesPastFailures(t *testing.T) {
	a, b := &failingSink{}, &failingSink{}
	Deliver(context.Background(), models.User{}, &Document{Filename: "x.pdf"}, a, b)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}
