// Package parser reads fact decks written in a line-prefixed markdown format.
//
// A deck is a sequence of facts separated by "---" lines:
//
//	ID: 7
//	Topic: space
//	Title: A day on Venus
//	Blurb: A day on Venus is longer than its year.
//	Body: Venus rotates once every 243 Earth days
//	but orbits the Sun in 225.
//	Q: Which is longer on Venus?
//	O: Its day
//	O: Its year
//	Correct: 0
//
// Blurb, Body, Q and E continue over the following unprefixed lines. Any text
// before the first prefix of a fact, such as a markdown heading, is ignored.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/conorfennell/curio/internal/domain"
)

const (
	idPrefix           = "ID:"
	topicPrefix        = "Topic:"
	titlePrefix        = "Title:"
	difficultyPrefix   = "Difficulty:"
	xpPrefix           = "XP:"
	imagePrefix        = "Image:"
	tagsPrefix         = "Tags:"
	verificationPrefix = "Verification:"
	sourcePrefix       = "Source:"
	blurbPrefix        = "Blurb:"
	bodyPrefix         = "Body:"
	questionPrefix     = "Q:"
	optionPrefix       = "O:"
	correctPrefix      = "Correct:"
	explanationPrefix  = "E:"

	separator = "---"
)

var prefixes = []string{
	idPrefix, topicPrefix, titlePrefix, difficultyPrefix, xpPrefix, imagePrefix,
	tagsPrefix, verificationPrefix, sourcePrefix, blurbPrefix, bodyPrefix,
	questionPrefix, optionPrefix, correctPrefix, explanationPrefix,
}

type state int

const (
	seeking state = iota
	readingField
	readingBlurb
	readingBody
	readingQuestion
	readingExplanation
)

// LineError reports a malformed value. The fact it belongs to is dropped.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ParseFile reads a deck from the given path.
func ParseFile(path string) ([]domain.Fact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse extracts every fact in r. Facts with malformed values are left out
// and their errors joined into the returned error, alongside the facts that
// did parse. A read failure returns no facts.
func Parse(r io.Reader) ([]domain.Fact, error) {
	scanner := bufio.NewScanner(r)
	var (
		facts    []domain.Fact
		errs     []error
		current  draft
		block    []string
		curState = seeking
		lineNo   int
	)

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch curState {
		case readingBlurb:
			current.fact.Blurb = content
		case readingBody:
			current.fact.Body = content
		case readingQuestion:
			current.question = content
		case readingExplanation:
			current.explanation = content
		}
		block = nil
	}

	finishFact := func() {
		flushBlock()
		if current.started {
			fact, err := current.build()
			switch {
			case err != nil:
				errs = append(errs, err)
			case len(current.errs) > 0:
				errs = append(errs, current.errs...)
			default:
				facts = append(facts, fact)
			}
		}
		current = draft{}
		curState = seeking
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == separator {
			finishFact()
			continue
		}

		prefix, value, ok := cutPrefix(line)
		if !ok {
			switch curState {
			case readingBlurb, readingBody, readingQuestion, readingExplanation:
				block = append(block, line)
			}
			continue
		}

		flushBlock()
		if !current.started {
			current.started = true
			current.line = lineNo
		}

		curState = readingField
		switch prefix {
		case idPrefix:
			current.fact.ID = domain.FactID(strings.TrimSpace(value))
		case topicPrefix:
			current.fact.Topic = strings.ToLower(strings.TrimSpace(value))
		case titlePrefix:
			current.fact.Title = strings.TrimSpace(value)
		case difficultyPrefix:
			current.fact.Difficulty = domain.Difficulty(strings.ToLower(strings.TrimSpace(value)))
		case xpPrefix:
			xp, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				current.fail(lineNo, fmt.Errorf("invalid XP %q", strings.TrimSpace(value)))
				break
			}
			current.fact.XPValue = xp
		case imagePrefix:
			current.fact.Image = strings.TrimSpace(value)
		case tagsPrefix:
			current.fact.Tags = SplitList(value, ",")
		case verificationPrefix:
			current.fact.VerificationLevel = strings.ToLower(strings.TrimSpace(value))
		case sourcePrefix:
			src, err := parseSource(value)
			if err != nil {
				current.fail(lineNo, err)
				break
			}
			current.fact.Sources = append(current.fact.Sources, src)
		case blurbPrefix:
			curState = readingBlurb
			block = append(block, value)
		case bodyPrefix:
			curState = readingBody
			block = append(block, value)
		case questionPrefix:
			curState = readingQuestion
			current.hasQuiz = true
			block = append(block, value)
		case optionPrefix:
			current.hasQuiz = true
			current.options = append(current.options, strings.TrimSpace(value))
		case correctPrefix:
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				current.fail(lineNo, fmt.Errorf("invalid Correct %q", strings.TrimSpace(value)))
				break
			}
			current.correct = n
			current.hasCorrect = true
		case explanationPrefix:
			curState = readingExplanation
			block = append(block, value)
		}
	}

	finishFact() // the last fact has no trailing separator

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return facts, errors.Join(errs...)
}

// cutPrefix matches the line against the known prefixes and strips one
// leading space from the value.
func cutPrefix(line string) (string, string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			value := line[len(p):]
			if strings.HasPrefix(value, " ") {
				value = value[1:]
			}
			return p, value, true
		}
	}
	return "", "", false
}

// SplitList splits s on sep, trimming entries and dropping empty ones.
func SplitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseSource reads "title | publication | year | type | url | author | doi".
// Trailing parts may be omitted.
func parseSource(value string) (domain.Source, error) {
	parts := strings.Split(value, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	at := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	src := domain.Source{
		Title:       at(0),
		Publication: at(1),
		Type:        strings.ToLower(at(3)),
		URL:         at(4),
		Author:      at(5),
		DOI:         at(6),
	}
	if y := at(2); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return domain.Source{}, fmt.Errorf("invalid source year %q", y)
		}
		src.Year = year
	}
	return src, nil
}

type draft struct {
	started     bool
	line        int
	fact        domain.Fact
	hasQuiz     bool
	question    string
	options     []string
	correct     int
	hasCorrect  bool
	explanation string
	errs        []error
}

func (d *draft) fail(line int, err error) {
	d.errs = append(d.errs, &LineError{Line: line, Err: err})
}

func (d *draft) build() (domain.Fact, error) {
	f := d.fact
	if d.hasQuiz {
		if !d.hasCorrect {
			return f, &LineError{Line: d.line, Err: fmt.Errorf("quiz of %q has no Correct answer", f.Title)}
		}
		f.Quiz = &domain.Quiz{
			Question:      d.question,
			Options:       d.options,
			CorrectAnswer: d.correct,
			Explanation:   d.explanation,
		}
	}
	return f, nil
}
