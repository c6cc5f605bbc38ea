package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FactID is the opaque identifier of a fact. Pools that number their facts
// are converted to the decimal string form when decoded.
type FactID string

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (id *FactID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FactID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("fact id must be a string or a number: %w", err)
	}
	*id = FactID(n.String())
	return nil
}

// Difficulty grades how hard a fact is.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Source is a citation backing a fact.
type Source struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author,omitempty"`
	Publication string `json:"publication"`
	Year        int    `json:"year,omitempty" validate:"gte=0"`
	URL         string `json:"url,omitempty" validate:"omitempty,url"`
	DOI         string `json:"doi,omitempty"`
	Type        string `json:"type,omitempty" validate:"omitempty,oneof=journal book article archive museum documentary"`
}

// Quiz is a single multiple-choice question attached to a fact.
type Quiz struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"min=2,dive,required"`
	CorrectAnswer int      `json:"correctAnswer" validate:"gte=0"`
	Explanation   string   `json:"explanation,omitempty"`
}

// IsCorrect reports whether option is the index of the correct answer.
func (q *Quiz) IsCorrect(option int) bool {
	return q != nil && option == q.CorrectAnswer
}

// Fact is a content unit shown to the user. Facts are never mutated after
// they enter a pool.
type Fact struct {
	ID                FactID     `json:"id" validate:"required"`
	Title             string     `json:"title" validate:"required"`
	Blurb             string     `json:"blurb"`
	Body              string     `json:"body"`
	Topic             string     `json:"topic" validate:"required"`
	Image             string     `json:"image,omitempty"`
	Sources           []Source   `json:"sources,omitempty" validate:"dive"`
	XPValue           int        `json:"xpValue" validate:"gt=0"`
	Difficulty        Difficulty `json:"difficulty" validate:"oneof=easy medium hard"`
	Tags              []string   `json:"tags,omitempty"`
	VerificationLevel string     `json:"verificationLevel,omitempty" validate:"omitempty,oneof=verified peer-reviewed historical-record"`
	Quiz              *Quiz      `json:"quiz,omitempty"`
	IsGenerated       bool       `json:"isGenerated,omitempty"`
}

// RawFact is what an external content source returns before it is turned
// into a Fact.
type RawFact struct {
	Title string `json:"title"`
	Blurb string `json:"blurb"`
	Topic string `json:"topic"`
	Quiz  *Quiz  `json:"quiz,omitempty"`
}
