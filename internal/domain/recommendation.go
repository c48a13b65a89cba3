package domain

// RecommendationType groups advisory items for presentation
type RecommendationType string

const (
	RecommendationDifferential RecommendationType = "differential"
	RecommendationTest         RecommendationType = "test"
	RecommendationFollowUp     RecommendationType = "followup"
	RecommendationEducation    RecommendationType = "education"
	RecommendationWarning      RecommendationType = "warning"
)

// Priority is the urgency of a recommendation
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities: high(0) < medium(1) < low(2). Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Recommendation is one advisory item surfaced to the clinician.
// IconName is an opaque hint for the presentation layer.
type Recommendation struct {
	ID          string             `json:"id"`
	Type        RecommendationType `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    Priority           `json:"priority"`
	IconName    string             `json:"iconName"`
}
