package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/raushankrgupta/meal-planner/models"
	"github.com/raushankrgupta/meal-planner/utils"
)

// FeedbackHandler records a like or dislike. It answers 204 straight away;
// delivery to the API happens in the background.
func (s *Server) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(r, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Feedback API]")

	var fb models.Feedback
	if wantsJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
			utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		fb = models.Feedback{FoodID: r.PostFormValue("foodId"), Action: r.PostFormValue("action")}
	}

	if fb.FoodID == "" || !models.ValidFeedbackAction(fb.Action) {
		utils.RespondError(w, &logMessageBuilder, "foodId and a liked/disliked action are required", http.StatusBadRequest)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("%s %s", fb.Action, fb.FoodID))

	sess, board := s.board(r)
	board.Feedback(r.Context(), sess.Token, fb.FoodID, fb.Action)
	w.WriteHeader(http.StatusNoContent)
}
