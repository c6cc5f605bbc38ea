package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/conorfennell/curio/internal/domain"
)

func TestLoadDefaultDeck(t *testing.T) {
	facts := Load(context.Background(), Config{IncludeDefault: true}, nil)
	require.Len(t, facts, 10)

	topics := map[string]int{}
	for _, f := range facts {
		require.NoError(t, domain.Validate(f), "fact %s", f.ID)
		require.NotNil(t, f.Quiz, "fact %s", f.ID)
		topics[f.Topic]++
	}
	assert.Equal(t, 3, topics["science"])
	assert.Equal(t, domain.FactID("1"), facts[0].ID)
	assert.Equal(t, "Honey Never Spoils", facts[0].Title)
	assert.Equal(t, 3, facts[0].Quiz.CorrectAnswer)
	assert.Len(t, facts[0].Sources, 3)
	assert.Equal(t, "Howard Carter", facts[0].Sources[1].Author)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDirs(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "space.md"), `Topic: Space
Title: Olympus Mons
Blurb: The tallest volcano in the solar system.
---
ID: 1
Topic: space
Title: Clashes with the default deck
`)
	writeFile(t, filepath.Join(dir, "nested", "art.csv"),
		"title,topic,xp,question,options,correct\n"+
			"Mona Lisa,Art,30,Where is it?,Louvre|Prado,0\n"+
			",,,,,\n"+
			"Bad row,art,lots,,,\n"+
			"No topic,,,,,\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "Topic: ignored\nTitle: ignored\n")

	xlsx := excelize.NewFile()
	sheet := xlsx.GetSheetName(0)
	require.NoError(t, xlsx.SetSheetRow(sheet, "A1", &[]string{"id", "topic", "title", "difficulty"}))
	require.NoError(t, xlsx.SetSheetRow(sheet, "A2", &[]string{"x1", "music", "Mozart", "hard"}))
	require.NoError(t, xlsx.SetSheetRow(sheet, "A3", &[]string{"x1", "music", "Duplicate id", "easy"}))
	require.NoError(t, xlsx.SaveAs(filepath.Join(dir, "music.xlsx")))
	require.NoError(t, xlsx.Close())

	facts := Load(context.Background(), Config{Dirs: []string{dir}, IncludeDefault: true}, nil)

	byTitle := map[string]domain.Fact{}
	for _, f := range facts {
		byTitle[f.Title] = f
	}
	require.Len(t, facts, 13)

	olympus := byTitle["Olympus Mons"]
	assert.Equal(t, "space", olympus.Topic)
	assert.Contains(t, string(olympus.ID), "f-")
	assert.Equal(t, 10, olympus.XPValue)
	assert.Equal(t, domain.Medium, olympus.Difficulty)
	assert.Equal(t, olympus.Blurb, olympus.Body)

	mona := byTitle["Mona Lisa"]
	assert.Equal(t, "art", mona.Topic)
	assert.Equal(t, 30, mona.XPValue)
	require.NotNil(t, mona.Quiz)
	assert.Equal(t, []string{"Louvre", "Prado"}, mona.Quiz.Options)

	mozart := byTitle["Mozart"]
	assert.Equal(t, domain.FactID("x1"), mozart.ID)
	assert.Equal(t, domain.Hard, mozart.Difficulty)

	assert.NotContains(t, byTitle, "Clashes with the default deck")
	assert.NotContains(t, byTitle, "Duplicate id")
	assert.NotContains(t, byTitle, "Bad row")
	assert.NotContains(t, byTitle, "No topic")
	assert.NotContains(t, byTitle, "ignored")
}

func TestLoadMissingSources(t *testing.T) {
	facts := Load(context.Background(), Config{
		Dirs:     []string{filepath.Join(t.TempDir(), "missing")},
		Repos:    []string{"not a url"},
		ReposDir: t.TempDir(),
	}, nil)
	assert.Empty(t, facts)
}

func TestFactsFromRows(t *testing.T) {
	_, err := factsFromRows([][]string{{"id", "title"}})
	assert.ErrorContains(t, err, "topic")

	facts, err := factsFromRows(nil)
	assert.NoError(t, err)
	assert.Empty(t, facts)

	facts, err = factsFromRows([][]string{
		{"Topic", "Title", "Question", "Correct"},
		{"art", "Quiz row", "Who?", "x"},
		{"art", "Short row"},
	})
	assert.ErrorContains(t, err, "row 2")
	require.Len(t, facts, 1)
	assert.Equal(t, "Short row", facts[0].Title)
}
