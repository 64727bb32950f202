package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/raushankrgupta/meal-planner/models"
	"github.com/raushankrgupta/meal-planner/planner"
	"github.com/raushankrgupta/meal-planner/session"
	"github.com/raushankrgupta/meal-planner/utils"
)

type dashboardPage struct {
	User       models.User
	View       planner.View
	Genders    []string
	Activities []string
	Goals      []string
	Diets      []string
}

func (s *Server) board(r *http.Request) (*session.Session, *planner.Dashboard) {
	sess, _ := sessionFrom(r.Context())
	return sess, s.boards.Get(sess.ID)
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// DashboardHandler renders the profile form and the current plan
func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	sess, board := s.board(r)
	render(w, http.StatusOK, "dashboard.html", dashboardPage{
		User:       sess.User,
		View:       board.Snapshot(),
		Genders:    models.Genders,
		Activities: models.Activities,
		Goals:      models.Goals,
		Diets:      models.Diets,
	})
}

// GenerateHandler replaces the plan with a freshly generated week
func (s *Server) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(r, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Generate Plan API]")

	sess, board := s.board(r)
	if err := r.ParseForm(); err != nil {
		board.SetNotice("Error: invalid form")
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	form, err := planner.FormFromValues(r.PostFormValue, board.Form())
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Invalid form: %v", err))
		board.SetNotice("Error: " + err.Error())
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	plan, err := board.Generate(r.Context(), sess.Token, form)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Generation failed: %v", err))
	} else {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Generated %d days", len(plan.WeekPlan)))
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

type regenerateRequest struct {
	DayIndex int    `json:"dayIndex"`
	MealType string `json:"mealType"`
}

// RegenerateHandler swaps one meal. Form posts return to the dashboard; JSON
// posts get the resulting meal back.
func (s *Server) RegenerateHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(r, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Regenerate Meal API]")

	isJSON := wantsJSON(r)
	var req regenerateRequest
	if isJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		day, err := strconv.Atoi(r.PostFormValue("day"))
		if err != nil {
			utils.AddToLogMessage(&logMessageBuilder, "Invalid day index")
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		req = regenerateRequest{DayIndex: day, MealType: r.PostFormValue("mealType")}
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Day %d, %s", req.DayIndex, req.MealType))

	sess, board := s.board(r)
	meal, err := board.Regenerate(r.Context(), sess.Token, req.DayIndex, req.MealType)
	switch {
	case errors.Is(err, planner.ErrStaleResponse):
		utils.AddToLogMessage(&logMessageBuilder, "Superseded by a newer request")
		// answer with whatever the slot holds now
		if plan := board.Plan(); plan != nil && req.DayIndex < len(plan.WeekPlan) {
			meal = plan.WeekPlan[req.DayIndex].Meals[req.MealType]
		}
	case errors.Is(err, planner.ErrNoPlan):
		if isJSON {
			utils.RespondError(w, &logMessageBuilder, err.Error(), http.StatusConflict)
			return
		}
	case errors.Is(err, planner.ErrInvalidSlot):
		if isJSON {
			utils.RespondError(w, &logMessageBuilder, err.Error(), http.StatusBadRequest)
			return
		}
	case err != nil:
		if isJSON {
			utils.RespondError(w, &logMessageBuilder, planner.MsgRegenerateFailed, http.StatusBadGateway)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Regeneration failed: %v", err))
	}

	if !isJSON {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"meal": meal})
}
