// Package export turns the rendered plan view into a paginated A4 PDF.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/capture"
	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/models"
	"github.com/raushankrgupta/meal-planner/utils"
)

const (
	// PlanSelector addresses the plan subtree in the rendered page.
	PlanSelector = "#plan-view"
	JPEGQuality  = 92
)

var (
	// ErrNothingToExport means there is no plan on screen. Nothing was
	// captured or written.
	ErrNothingToExport = errors.New("nothing to export")
	// ErrExportFailed wraps any failure after the plan was found.
	ErrExportFailed = errors.New("export failed")
)

// RenderFunc produces a standalone HTML page showing plan.
type RenderFunc func(plan *models.MealPlan) (string, error)

// Acquirer obtains the rasterizer. It is called at most once per Exporter.
type Acquirer func() (capture.Rasterizer, error)

// Document is a finished PDF.
type Document struct {
	Filename string
	Data     []byte
	Pages    int
}

type Exporter struct {
	render  RenderFunc
	acquire Acquirer

	once      sync.Once
	raster    capture.Rasterizer
	rasterErr error

	// InlineImages replaces remote <img> sources with data URIs before
	// capture.
	InlineImages func(ctx context.Context, urls []string) map[string]string
}

func New(render RenderFunc, acquire Acquirer) *Exporter {
	return &Exporter{
		render:       render,
		acquire:      acquire,
		InlineImages: utils.InlineImages,
	}
}

func (e *Exporter) rasterizer() (capture.Rasterizer, error) {
	e.once.Do(func() {
		e.raster, e.rasterErr = e.acquire()
		if e.rasterErr == nil {
			logger.Info("Export rasterizer ready", zap.String("strategy", e.raster.Name()))
		}
	})
	return e.raster, e.rasterErr
}

// Filename is the download name for an export made at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("weekly_meal_plan_%s.pdf", now.Format("2006-01-02"))
}

// Export renders plan, captures it and lays the image out over as many A4
// pages as it needs. The plan is only read.
func (e *Exporter) Export(ctx context.Context, plan *models.MealPlan, now time.Time) (*Document, error) {
	if plan == nil {
		return nil, ErrNothingToExport
	}
	html, err := e.render(plan)
	if err != nil {
		return nil, failed("render plan", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, failed("parse plan page", err)
	}
	if doc.Find(PlanSelector).Length() == 0 {
		return nil, ErrNothingToExport
	}

	html, err = e.inline(ctx, doc)
	if err != nil {
		return nil, failed("inline images", err)
	}

	r, err := e.rasterizer()
	if err != nil {
		return nil, failed("acquire rasterizer", err)
	}
	shot, err := r.Rasterize(ctx, html, PlanSelector)
	if err != nil {
		return nil, failed("capture plan", err)
	}

	bitmap, _, err := image.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, failed("decode capture", err)
	}
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, flatten(bitmap), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, failed("encode jpeg", err)
	}

	data, pages, err := layout(jpg.Bytes(), bitmap.Bounds().Dx(), bitmap.Bounds().Dy())
	if err != nil {
		return nil, failed("build pdf", err)
	}

	out := &Document{Filename: Filename(now), Data: data, Pages: pages}
	logger.Info("Plan exported", zap.String("file", out.Filename), zap.Int("pages", pages), zap.Int("bytes", len(data)))
	return out, nil
}

func failed(step string, err error) error {
	logger.Error("PDF export failed", zap.String("step", step), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrExportFailed, step, err)
}

// inline swaps every remote image for a data URI. Images that could not be
// fetched keep their URL.
func (e *Exporter) inline(ctx context.Context, doc *goquery.Document) (string, error) {
	if e.InlineImages != nil {
		imgs := doc.Find("img[src]")
		var urls []string
		imgs.Each(func(_ int, s *goquery.Selection) {
			urls = append(urls, s.AttrOr("src", ""))
		})
		if len(urls) > 0 {
			data := e.InlineImages(ctx, urls)
			imgs.Each(func(_ int, s *goquery.Selection) {
				if uri, ok := data[s.AttrOr("src", "")]; ok {
					s.SetAttr("src", uri)
				}
			})
		}
	}
	return doc.Html()
}

// flatten draws img over white so transparent areas do not turn black.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Over)
	return out
}

func layout(jpg []byte, width, height int) ([]byte, int, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pageW, pageH := pdf.GetPageSize()

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("plan", opts, bytes.NewReader(jpg))

	imgH := ScaledHeight(width, height, pageW)
	offsets := Paginate(imgH, pageH)
	for _, y := range offsets {
		pdf.AddPage()
		pdf.ImageOptions("plan", 0, y, pageW, imgH, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(offsets), nil
}
