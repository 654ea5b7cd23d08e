// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/job-scout/internal/matching"
	"github.com/jonathan/job-scout/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProfile outputs a human-readable summary of the profile clusters
// with their inclusion state and confidence.
func (p *Printer) PrintProfile(profile types.Profile, score float64) {
	if profile == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Completeness: %.1f / 100\n\n", score))

	names := make([]string, 0, len(profile))
	for name := range profile {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cluster := profile[name]
		marker := "✓"
		if !cluster.Include {
			marker = "✗"
		}
		sb.WriteString(fmt.Sprintf("%s %-14s conf %.2f", marker, name, cluster.Confidence))
		if len(cluster.Items) > 0 {
			sb.WriteString(fmt.Sprintf("  (%d items)", len(cluster.Items)))
		}
		if cluster.HideDates {
			sb.WriteString("  [dates hidden]")
		}
		if cluster.LowConfidence {
			sb.WriteString("  [low confidence]")
		}
		sb.WriteString("\n")
	}

	if conflicts := profile.UnresolvedConflicts(); len(conflicts) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠ %d unresolved conflicts", len(conflicts)))
	}

	p.printBox("PROFILE STATE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintQuestions outputs the clarification questions queued for the user.
func (p *Printer) PrintQuestions(questions []types.Question) {
	if len(questions) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d questions this round:\n\n", len(questions)))

	for i, q := range questions {
		text := q.Text
		if len(text) > 50 {
			text = text[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("#%d  [%s]\n", i+1, q.Cluster))
		sb.WriteString(fmt.Sprintf("    %s\n", text))
		if i < len(questions)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("CLARIFICATION QUESTIONS", sb.String())
}

// PrintMatches outputs the top scored matches for a user.
func (p *Printer) PrintMatches(matches []types.JobMatch, postings map[string]*types.JobPosting) {
	if len(matches) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total matches: %d\n\n", len(matches)))

	count := min(len(matches), maxItemsToShow)
	for i := 0; i < count; i++ {
		m := matches[i]
		title := m.Fingerprint[:12]
		if posting, ok := postings[m.Fingerprint]; ok && posting != nil {
			title = posting.Title
			if posting.Company != "" {
				title += " @ " + posting.Company
			}
		}
		if len(title) > 44 {
			title = title[:41] + "..."
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, title))
		sb.WriteString(fmt.Sprintf("    Score: %.1f  Status: %s\n", m.Score, m.Status))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(matches) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more matches", len(matches)-maxItemsToShow))
	}

	p.printBox("JOB MATCHES", sb.String())
}

// PrintRunReport outputs a summary of a completed batch matching run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRunReport(report *matching.RunReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Epoch:     %s\n", report.Epoch))
	sb.WriteString(fmt.Sprintf("Users:     %d\n", report.Users))
	sb.WriteString(fmt.Sprintf("Processed: %d\n", report.Processed))
	sb.WriteString(fmt.Sprintf("Skipped:   %d\n", report.Skipped))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", report.Failed))
	sb.WriteString(fmt.Sprintf("Purged:    %d postings", report.Purged))

	p.printBox("BATCH RUN REPORT", sb.String())

	if len(report.Errors) == 0 {
		return
	}

	sb.Reset()
	sb.WriteString(fmt.Sprintf("%d users failed:\n\n", len(report.Errors)))
	for _, err := range report.Errors {
		detail := err.Error()
		if len(detail) > 50 {
			detail = detail[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("⚠ %s\n", detail))
	}
	p.printBox("RUN FAILURES", strings.TrimSuffix(sb.String(), "\n"))
}
