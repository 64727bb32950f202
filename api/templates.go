package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/models"
)

//go:embed templates/*.html
var templateFS embed.FS

type planViewData struct {
	Plan        *models.MealPlan
	Interactive bool
}

var funcs = template.FuncMap{
	"mealTypes": func() []string { return models.MealTypes },
	"meal": func(day models.Day, mealType string) *models.Meal {
		return day.Meals[mealType]
	},
	"label": label,
	"planView": func(plan *models.MealPlan, interactive bool) planViewData {
		return planViewData{Plan: plan, Interactive: interactive}
	},
}

var pages = template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

// label turns an enum value such as "weight_loss" into "Weight loss".
func label(v string) string {
	v = strings.ReplaceAll(v, "_", " ")
	if v == "" {
		return v
	}
	return strings.ToUpper(v[:1]) + v[1:]
}

func render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Template render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderPlanDocument renders plan as a standalone page for export. It uses
// the same plan fragment as the dashboard, without the action buttons.
func RenderPlanDocument(plan *models.MealPlan) (string, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "export.html", planViewData{Plan: plan}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
