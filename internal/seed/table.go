package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/parser"
)

// Columns of a tabular deck. The header row names them in any order; only
// topic and title are required.
var columns = []string{
	"id", "topic", "title", "blurb", "body", "difficulty", "xp", "image",
	"question", "options", "correct", "explanation",
}

// ReadWorkbook reads the facts on the first sheet of an .xlsx deck.
func ReadWorkbook(path string) ([]domain.Fact, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return factsFromRows(rows)
}

// ReadCSV reads the facts of a .csv deck.
func ReadCSV(path string) ([]domain.Fact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // short rows leave trailing columns empty
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return factsFromRows(rows)
}

// factsFromRows converts a header row and the data rows below it. Malformed
// rows are left out and reported in the joined error.
func factsFromRows(rows [][]string) ([]domain.Fact, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(columns))
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"topic", "title"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("header is missing the %q column", required)
		}
	}

	var (
		facts []domain.Fact
		errs  []error
	)
	for n, row := range rows[1:] {
		rowNum := n + 2
		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}

		fact := domain.Fact{
			ID:         domain.FactID(cell("id")),
			Topic:      strings.ToLower(cell("topic")),
			Title:      cell("title"),
			Blurb:      cell("blurb"),
			Body:       cell("body"),
			Difficulty: domain.Difficulty(strings.ToLower(cell("difficulty"))),
			Image:      cell("image"),
		}
		if xp := cell("xp"); xp != "" {
			v, err := strconv.Atoi(xp)
			if err != nil {
				errs = append(errs, rowError(rowNum, fmt.Errorf("invalid xp %q", xp)))
				continue
			}
			fact.XPValue = v
		}
		if q := cell("question"); q != "" {
			correct, err := strconv.Atoi(cell("correct"))
			if err != nil {
				errs = append(errs, rowError(rowNum, fmt.Errorf("invalid correct answer %q", cell("correct"))))
				continue
			}
			fact.Quiz = &domain.Quiz{
				Question:      q,
				Options:       parser.SplitList(cell("options"), "|"),
				CorrectAnswer: correct,
				Explanation:   cell("explanation"),
			}
		}
		facts = append(facts, fact)
	}
	return facts, errors.Join(errs...)
}

// rowError locates a malformed table row.
func rowError(row int, err error) error {
	return fmt.Errorf("row %d: %w", row, err)
}
