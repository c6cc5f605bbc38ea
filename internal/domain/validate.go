package domain

import (
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(quizStructLevel, Quiz{})
	return v
}

// quizStructLevel rejects a correct answer index that points past the options.
func quizStructLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(Quiz)
	if q.CorrectAnswer >= len(q.Options) {
		sl.ReportError(q.CorrectAnswer, "CorrectAnswer", "correctAnswer", "ltlen", "")
	}
}

// Validate checks a domain value against its struct tags.
func Validate(v any) error {
	return validate.Struct(v)
}
