// Package planner holds the dashboard state of one session: the profile
// form, the current plan and the busy flags, and runs generate, regenerate
// and feedback against the API.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/apiclient"
	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/models"
)

const (
	MsgRegenerateFailed = "Failed to regenerate meal"
	MsgExportFailed     = "Failed to export PDF"
)

var (
	// ErrNoPlan is returned when an operation needs a plan and none is shown.
	ErrNoPlan = errors.New("no plan generated yet")
	// ErrStaleResponse means a newer request for the same slot (or a newer
	// plan) was applied first, so this response was dropped.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrInvalidSlot is returned for a day index or meal type that does not
	// address a meal in the current plan.
	ErrInvalidSlot = errors.New("invalid meal slot")
)

// API is the part of the API client the dashboard needs.
type API interface {
	GeneratePlan(ctx context.Context, token string, profile models.UserProfile) (*models.MealPlan, error)
	Regenerate(ctx context.Context, token string, req apiclient.RegenerateRequest) (*models.Meal, error)
	SendFeedback(ctx context.Context, token string, fb models.Feedback) error
}

type slot struct {
	day      int
	mealType string
}

// Dashboard is safe for concurrent use. The lock is never held across an
// API call.
type Dashboard struct {
	api API

	mu   sync.Mutex
	form ProfileForm
	plan *models.MealPlan

	// plan generations: issued and applied sequence numbers
	genIssued  uint64
	genApplied uint64
	epoch      uint64

	// per-slot regenerate sequence numbers within the current epoch
	slotIssued  map[slot]uint64
	slotApplied map[slot]uint64

	generating int
	exporting  int
	notice     string
}

func NewDashboard(api API, form ProfileForm) *Dashboard {
	return &Dashboard{
		api:         api,
		form:        form,
		slotIssued:  make(map[slot]uint64),
		slotApplied: make(map[slot]uint64),
	}
}

// View is a consistent snapshot for rendering.
type View struct {
	Form       ProfileForm
	Plan       *models.MealPlan
	Generating bool
	Exporting  bool
	Notice     string
}

// Snapshot returns the current state and clears the pending notice.
func (d *Dashboard) Snapshot() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := View{
		Form:       d.form,
		Plan:       d.plan,
		Generating: d.generating > 0,
		Exporting:  d.exporting > 0,
		Notice:     d.notice,
	}
	d.notice = ""
	return v
}

// Plan returns the current plan. The plan is never mutated in place, so the
// returned value stays valid after later updates.
func (d *Dashboard) Plan() *models.MealPlan {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plan
}

// Form returns the profile form as last submitted.
func (d *Dashboard) Form() ProfileForm {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form
}

func (d *Dashboard) SetNotice(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notice = msg
}

// Generate replaces the whole plan with a new one for form. On failure the
// previous plan stays and the server message becomes the notice.
func (d *Dashboard) Generate(ctx context.Context, token string, form ProfileForm) (*models.MealPlan, error) {
	profile := form.Profile()
	if err := profile.Validate(); err != nil {
		d.SetNotice("Error: " + err.Error())
		return nil, err
	}

	d.mu.Lock()
	d.form = form
	d.genIssued++
	seq := d.genIssued
	d.generating++
	d.mu.Unlock()

	plan, err := d.api.GeneratePlan(ctx, token, profile)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.generating--
	if err != nil {
		d.notice = "Error: " + apiclient.ServerMessage(err, errorText(err))
		logger.Warn("Plan generation failed", zap.Error(err))
		return nil, err
	}
	if seq <= d.genApplied {
		return nil, ErrStaleResponse
	}
	d.genApplied = seq
	d.plan = plan
	d.epoch++
	d.slotIssued = make(map[slot]uint64)
	d.slotApplied = make(map[slot]uint64)
	return plan, nil
}

func errorText(err error) string {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// Regenerate replaces the meal at (dayIndex, mealType). Only that slot
// changes; every other day and meal keeps its previous value. On failure the
// plan is untouched and a generic notice is set.
func (d *Dashboard) Regenerate(ctx context.Context, token string, dayIndex int, mealType string) (*models.Meal, error) {
	key := slot{day: dayIndex, mealType: mealType}

	d.mu.Lock()
	if d.plan == nil {
		d.mu.Unlock()
		return nil, ErrNoPlan
	}
	current, err := mealAt(d.plan, dayIndex, mealType)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	epoch := d.epoch
	d.slotIssued[key]++
	seq := d.slotIssued[key]
	req := apiclient.RegenerateRequest{
		UserProfile:   d.form.Profile(),
		MealType:      mealType,
		CurrentFoodID: current.MainItemID(),
	}
	d.mu.Unlock()

	meal, err := d.api.Regenerate(ctx, token, req)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.notice = MsgRegenerateFailed
		logger.Warn("Meal regeneration failed",
			zap.Int("day", dayIndex), zap.String("meal_type", mealType), zap.Error(err))
		return nil, err
	}
	if epoch != d.epoch || seq <= d.slotApplied[key] {
		logger.Debug("Dropping stale regenerate response",
			zap.Int("day", dayIndex), zap.String("meal_type", mealType), zap.Uint64("seq", seq))
		return nil, ErrStaleResponse
	}
	d.slotApplied[key] = seq
	d.plan = withMeal(d.plan, dayIndex, mealType, meal)
	return meal, nil
}

func mealAt(plan *models.MealPlan, dayIndex int, mealType string) (*models.Meal, error) {
	if dayIndex < 0 || dayIndex >= len(plan.WeekPlan) || !models.IsMealType(mealType) {
		return nil, fmt.Errorf("%w: day %d %q", ErrInvalidSlot, dayIndex, mealType)
	}
	m := plan.WeekPlan[dayIndex].Meals[mealType]
	if m == nil {
		return nil, fmt.Errorf("%w: no %s on day %d", ErrInvalidSlot, mealType, dayIndex)
	}
	return m, nil
}

// withMeal returns a copy of plan with one slot replaced. The week slice and
// the target day's meal map are new; everything else is shared with plan.
func withMeal(plan *models.MealPlan, dayIndex int, mealType string, meal *models.Meal) *models.MealPlan {
	next := &models.MealPlan{
		Targets:  plan.Targets,
		WeekPlan: make([]models.Day, len(plan.WeekPlan)),
	}
	copy(next.WeekPlan, plan.WeekPlan)

	day := plan.WeekPlan[dayIndex]
	meals := make(map[string]*models.Meal, len(day.Meals))
	for k, v := range day.Meals {
		meals[k] = v
	}
	meals[mealType] = meal
	next.WeekPlan[dayIndex] = models.Day{Day: day.Day, Meals: meals}
	return next
}

// Feedback sends a like or dislike in the background. The outcome is only
// logged; it never changes the plan or the notice.
func (d *Dashboard) Feedback(ctx context.Context, token, foodID, action string) {
	if foodID == "" || !models.ValidFeedbackAction(action) {
		logger.Warn("Ignoring malformed feedback", zap.String("food_id", foodID), zap.String("action", action))
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := d.api.SendFeedback(ctx, token, models.Feedback{FoodID: foodID, Action: action}); err != nil {
			logger.Warn("Feedback failed", zap.String("food_id", foodID), zap.String("action", action), zap.Error(err))
		}
	}()
}

// BeginExport raises the exporting flag. The returned func lowers it and
// must be called however the export ends.
func (d *Dashboard) BeginExport() (done func()) {
	d.mu.Lock()
	d.exporting++
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			d.exporting--
			d.mu.Unlock()
		})
	}
}
