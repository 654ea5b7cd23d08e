package observability

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-scout/internal/matching"
	"github.com/jonathan/job-scout/internal/types"
)

func TestPrintProfile(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	profile := types.NewProfile()
	profile[types.ClusterSkills].Fields = map[string]string{"primary": "go, sql"}
	profile[types.ClusterSkills].Confidence = 0.9
	profile[types.ClusterVolunteer].Include = false
	profile[types.ClusterEducation].HideDates = true
	profile[types.ClusterName].Conflicts = []types.ValidationConflict{
		{Field: "value", ParsedValue: "Jane Doe", AnswerValue: "Janet Doe"},
	}

	p.PrintProfile(profile, 72.5)
	output := buf.String()

	assert.Contains(t, output, "PROFILE STATE")
	assert.Contains(t, output, "72.5")
	assert.Contains(t, output, "skills")
	assert.Contains(t, output, "[dates hidden]")
	assert.Contains(t, output, "1 unresolved conflicts")
}

func TestPrintProfile_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProfile(nil, 0)

	assert.Empty(t, buf.String())
}

func TestPrintQuestions(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintQuestions([]types.Question{
		{Cluster: types.ClusterSkills, Text: "Which skills do you use most?"},
		{Cluster: types.ClusterWork, Text: "Walk me through your recent roles."},
	})
	output := buf.String()

	assert.Contains(t, output, "CLARIFICATION QUESTIONS")
	assert.Contains(t, output, "skills")
	assert.Contains(t, output, "Which skills do you use most?")
}

func TestPrintQuestions_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintQuestions(nil)

	assert.Empty(t, buf.String())
}

func TestPrintMatches(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	matches := []types.JobMatch{
		{Fingerprint: "fp-1", Score: 94.2, Status: types.MatchPending},
	}
	postings := map[string]*types.JobPosting{
		"fp-1": {Title: "Go Engineer", Company: "ACME"},
	}

	p.PrintMatches(matches, postings)
	output := buf.String()

	assert.Contains(t, output, "JOB MATCHES")
	assert.Contains(t, output, "Go Engineer @ ACME")
	assert.Contains(t, output, "94.2")
}

func TestPrintRunReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunReport(&matching.RunReport{
		Epoch:     "2026-08-29",
		Users:     10,
		Processed: 8,
		Skipped:   1,
		Failed:    1,
		Purged:    3,
		Errors:    []error{fmt.Errorf("user u9: source unavailable")},
	})
	output := buf.String()

	assert.Contains(t, output, "BATCH RUN REPORT")
	assert.Contains(t, output, "2026-08-29")
	assert.Contains(t, output, "RUN FAILURES")
	assert.Contains(t, output, "u9")
}
