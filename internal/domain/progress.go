package domain

import "time"

// Status is the progress state of a fact for the user.
type Status string

const (
	StatusViewed   Status = "viewed"
	StatusQuizzed  Status = "quizzed"
	StatusMastered Status = "mastered"
)

// UserFactProgress records every interaction the user had with one fact.
// CorrectAnswers never exceeds QuizAttempts.
type UserFactProgress struct {
	FactID         FactID    `json:"factId" validate:"required"`
	Status         Status    `json:"status" validate:"oneof=viewed quizzed mastered"`
	ViewCount      int       `json:"viewCount" validate:"gte=0"`
	QuizAttempts   int       `json:"quizAttempts" validate:"gte=0"`
	CorrectAnswers int       `json:"correctAnswers" validate:"gte=0,ltefield=QuizAttempts"`
	FirstViewed    time.Time `json:"firstViewed" validate:"required"`
	LastViewed     time.Time `json:"lastViewed" validate:"required"`
}

// Accuracy returns the share of correct quiz answers as a percentage.
func (p UserFactProgress) Accuracy() float64 {
	if p.QuizAttempts == 0 {
		return 0
	}
	return float64(p.CorrectAnswers) / float64(p.QuizAttempts) * 100
}

// Statistics aggregates the user's progress records.
type Statistics struct {
	TotalViewed   int     `json:"totalViewed"`
	TotalQuizzed  int     `json:"totalQuizzed"`
	TotalMastered int     `json:"totalMastered"`
	Accuracy      float64 `json:"accuracy"`
}
