package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/notelens/pkg/domain/model"
)

func withoutColor(t *testing.T) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })
}

func TestPrintStats(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	printStats(&buf, model.Stats{Total: 5, New: 2, Modified: 1, Unchanged: 2, Deleted: 1, InTrash: 1})

	out := buf.String()
	gt.String(t, out).Contains("Sync results")
	gt.String(t, out).Contains("new        2")
	gt.String(t, out).Contains("deleted    1")
	gt.String(t, out).Contains("errors     0")
}

func TestPrintResults(t *testing.T) {
	withoutColor(t)

	t.Run("ranked results with excerpts", func(t *testing.T) {
		var buf bytes.Buffer
		printResults(&buf, "milk", []model.SearchResultItem{
			{Title: "Groceries", Plaintext: "milk\n\n eggs", SimilarityScore: 0.91234},
			{Title: "Empty"},
		})

		out := buf.String()
		gt.String(t, out).Contains(`2 notes match "milk"`)
		gt.String(t, out).Contains(" 1. Groceries (0.912)")
		gt.String(t, out).Contains("    milk eggs")
		gt.Number(t, strings.Count(out, "\n")).Equal(4)
	})

	t.Run("no results", func(t *testing.T) {
		var buf bytes.Buffer
		printResults(&buf, "nothing", nil)
		gt.String(t, buf.String()).Equal("No notes match \"nothing\"\n")
	})
}

func TestPrintCheck(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	printCheck(&buf, "Vector store", nil)
	printCheck(&buf, "Note extraction", errors.New("ruby is not installed"))

	gt.String(t, buf.String()).Equal("[ OK ] Vector store\n[FAIL] Note extraction: ruby is not installed\n")
}

func TestExcerpt(t *testing.T) {
	gt.String(t, excerpt("a  b\tc", 10)).Equal("a b c")
	gt.String(t, excerpt("日本語のメモ", 3)).Equal("日本語...")
}
