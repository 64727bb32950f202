package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/api"
	"github.com/raushankrgupta/meal-planner/capture"
	"github.com/raushankrgupta/meal-planner/config"
	"github.com/raushankrgupta/meal-planner/export"
	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/models"
)

// Exports a sample week through a real browser so the capture chain can be
// checked on a machine with Chrome and chromedriver installed.
func main() {
	days := flag.Int("days", 7, "number of days in the sample plan")
	outDir := flag.String("out", ".", "directory to write the PDF to")
	flag.Parse()

	config.LoadConfig()
	logger.InitializeLogger("development")
	defer logger.Close()

	chain := capture.Default()
	defer chain.Close()
	exporter := export.New(api.RenderPlanDocument, func() (capture.Rasterizer, error) { return chain, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	doc, err := exporter.Export(ctx, samplePlan(*days), time.Now())
	if err != nil {
		logger.Fatal("Export failed", zap.Error(err))
	}

	path := filepath.Join(*outDir, doc.Filename)
	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		logger.Fatal("Failed to write PDF", zap.Error(err))
	}
	fmt.Printf("Wrote %s (%d pages, %d bytes)\n", path, doc.Pages, len(doc.Data))
}

func samplePlan(days int) *models.MealPlan {
	names := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	dishes := map[string][]string{
		models.MealBreakfast: {"Vegetable Poha", "Masala Oats", "Moong Dal Chilla", "Idli Sambar"},
		models.MealLunch:     {"Paneer Tikka Wrap", "Rajma Chawal", "Grilled Chicken Salad", "Chole with Roti"},
		models.MealSnack:     {"Roasted Makhana", "Greek Yogurt", "Sprouts Chaat", "Fruit Bowl"},
		models.MealDinner:    {"Dal Khichdi", "Fish Curry with Rice", "Tofu Stir Fry", "Palak Paneer"},
	}

	plan := &models.MealPlan{Targets: models.Targets{Calories: 1850, Protein: 110, Carbs: 210}}
	for i := 0; i < days; i++ {
		day := models.Day{Day: names[i%len(names)], Meals: map[string]*models.Meal{}}
		for _, mt := range models.MealTypes {
			options := dishes[mt]
			cal := 250.0 + float64((i*37+len(mt)*11)%200)
			day.Meals[mt] = &models.Meal{
				Items: []models.FoodItem{{
					ID:       fmt.Sprintf("%s-%d", mt, i),
					Name:     options[i%len(options)],
					Calories: cal,
					Protein:  cal / 20,
					Carbs:    cal / 8,
					Fat:      cal / 40,
				}},
				TotalCalories: cal,
			}
		}
		plan.WeekPlan = append(plan.WeekPlan, day)
	}
	return plan
}
