package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/secmon-lab/notelens/pkg/domain/model"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errColor     = color.New(color.FgRed, color.Bold)
	scoreColor   = color.New(color.FgMagenta)
	excerptColor = color.New(color.Faint)
)

const excerptLength = 160

func printStats(w io.Writer, stats model.Stats) {
	_, _ = headerColor.Fprintln(w, "Sync results")
	_, _ = fmt.Fprintf(w, "  %-10s %d\n", "total", stats.Total)
	_, _ = okColor.Fprintf(w, "  %-10s %d\n", "new", stats.New)
	_, _ = okColor.Fprintf(w, "  %-10s %d\n", "modified", stats.Modified)
	_, _ = fmt.Fprintf(w, "  %-10s %d\n", "unchanged", stats.Unchanged)
	_, _ = warnColor.Fprintf(w, "  %-10s %d\n", "deleted", stats.Deleted)
	_, _ = warnColor.Fprintf(w, "  %-10s %d\n", "in trash", stats.InTrash)

	errLine := okColor
	if stats.Errors > 0 {
		errLine = errColor
	}
	_, _ = errLine.Fprintf(w, "  %-10s %d\n", "errors", stats.Errors)
}

func printResults(w io.Writer, query string, items []model.SearchResultItem) {
	if len(items) == 0 {
		_, _ = warnColor.Fprintf(w, "No notes match %q\n", query)
		return
	}

	_, _ = headerColor.Fprintf(w, "%d notes match %q\n", len(items), query)
	for i, item := range items {
		_, _ = fmt.Fprintf(w, "%2d. %s ", i+1, item.Title)
		_, _ = scoreColor.Fprintf(w, "(%.3f)\n", item.SimilarityScore)
		if text := excerpt(item.Plaintext, excerptLength); text != "" {
			_, _ = excerptColor.Fprintf(w, "    %s\n", text)
		}
	}
}

func printCheck(w io.Writer, name string, err error) {
	if err == nil {
		_, _ = okColor.Fprintf(w, "[ OK ] %s\n", name)
		return
	}
	_, _ = errColor.Fprintf(w, "[FAIL] %s: %v\n", name, err)
}

// excerpt collapses whitespace and cuts s to limit runes
func excerpt(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
