package models

// Feedback actions accepted by /api/user/feedback.
const (
	FeedbackLiked    = "liked"
	FeedbackDisliked = "disliked"
)

// Feedback is a like/dislike signal for a single food item.
type Feedback struct {
	FoodID string `json:"foodId"`
	Action string `json:"action"`
}

// ValidFeedbackAction reports whether action is liked or disliked.
func ValidFeedbackAction(action string) bool {
	return action == FeedbackLiked || action == FeedbackDisliked
}
