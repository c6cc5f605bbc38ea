package domain

// UserProfile is the single local user. TotalXP never decreases.
type UserProfile struct {
	ID              string   `json:"id" validate:"required"`
	DisplayName     string   `json:"displayName"`
	Avatar          string   `json:"avatar"`
	TotalXP         int      `json:"totalXP" validate:"gte=0"`
	CompletedFacts  []FactID `json:"completedFacts"`
	PreferredTopics []string `json:"preferredTopics"`
}
