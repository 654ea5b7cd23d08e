// Package types provides type definitions for structured data used throughout the job-scout system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// Cluster names for the candidate profile schema. Every profile carries all of
// these keys, even when a cluster is empty.
const (
	ClusterName       = "name"
	ClusterContact    = "contact_info"
	ClusterSummary    = "summary"
	ClusterWork       = "work_experience"
	ClusterEducation  = "education"
	ClusterSkills     = "skills"
	ClusterCerts      = "certifications"
	ClusterProjects   = "projects"
	ClusterVolunteer  = "volunteer_experience"
	ClusterLanguages  = "languages"
)

// ClusterNames lists every defined cluster in schema order.
var ClusterNames = []string{
	ClusterName,
	ClusterContact,
	ClusterSummary,
	ClusterWork,
	ClusterEducation,
	ClusterSkills,
	ClusterCerts,
	ClusterProjects,
	ClusterVolunteer,
	ClusterLanguages,
}

// ListClusters identifies which clusters hold item lists rather than scalar fields.
var ListClusters = map[string]bool{
	ClusterWork:      true,
	ClusterEducation: true,
	ClusterCerts:     true,
	ClusterProjects:  true,
	ClusterVolunteer: true,
}

// Item represents a single entry in a list-typed cluster (a job, a degree, a project).
type Item struct {
	Title        string  `json:"title"`
	Organization string  `json:"organization,omitempty"`
	StartDate    string  `json:"start_date,omitempty"` // YYYY-MM
	EndDate      string  `json:"end_date,omitempty"`   // YYYY-MM or empty for current
	Description  string  `json:"description,omitempty"`
	Relevance    float64 `json:"relevance,omitempty"` // 0-1, set by the writer stage
}

// DedupeKey returns a content-similarity key used when merging list clusters.
func (it Item) DedupeKey() string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return fmt.Sprintf("%s|%s|%s-%s", norm(it.Title), norm(it.Organization), it.StartDate, it.EndDate)
}

// ValidationConflict records a disagreement between a conversational answer and a
// parsed value. It is surfaced for user resolution rather than auto-overwritten.
type ValidationConflict struct {
	Field       string `json:"field"`
	ParsedValue string `json:"parsed_value"`
	AnswerValue string `json:"answer_value"`
	Resolved    bool   `json:"resolved"`
}

// Cluster is a named, independently toggleable section of a candidate profile.
// Clusters with Include=false are retained so the toggle is reversible.
type Cluster struct {
	Fields         map[string]string    `json:"fields,omitempty"` // scalar clusters
	Items          []Item               `json:"items,omitempty"`  // list clusters
	Include        bool                 `json:"include"`
	Confidence     float64              `json:"confidence"` // 0-1
	OmissionReason string               `json:"omission_reason,omitempty"`
	HideDates      bool                 `json:"hide_dates,omitempty"`
	// UserSetInclude and UserSetHideDates record that the value came from an
	// explicit toggle instruction. Bias-policy defaults leave such values alone.
	UserSetInclude   bool                 `json:"user_set_include,omitempty"`
	UserSetHideDates bool                 `json:"user_set_hide_dates,omitempty"`
	BiasRisk         string               `json:"bias_risk,omitempty"`
	LowConfidence    bool                 `json:"low_confidence,omitempty"`
	Conflicts        []ValidationConflict `json:"conflicts,omitempty"`
}

// Empty reports whether the cluster carries no content.
func (c *Cluster) Empty() bool {
	return len(c.Fields) == 0 && len(c.Items) == 0
}

// Profile maps cluster names to their values.
type Profile map[string]*Cluster

// NewProfile returns a profile with every defined cluster present and empty.
// Clusters default to included so toggling off is always an explicit act.
func NewProfile() Profile {
	p := make(Profile, len(ClusterNames))
	for _, name := range ClusterNames {
		p[name] = &Cluster{Include: true}
	}
	return p
}

// Clone returns a deep copy of the profile, used for per-stage snapshots.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for name, c := range p {
		cp := *c
		if c.Fields != nil {
			cp.Fields = make(map[string]string, len(c.Fields))
			for k, v := range c.Fields {
				cp.Fields[k] = v
			}
		}
		cp.Items = append([]Item(nil), c.Items...)
		cp.Conflicts = append([]ValidationConflict(nil), c.Conflicts...)
		out[name] = &cp
	}
	return out
}

// UnresolvedConflicts returns all unresolved validation conflicts across clusters.
func (p Profile) UnresolvedConflicts() []ValidationConflict {
	var out []ValidationConflict
	for _, name := range ClusterNames {
		c, ok := p[name]
		if !ok {
			continue
		}
		for _, conflict := range c.Conflicts {
			if !conflict.Resolved {
				out = append(out, conflict)
			}
		}
	}
	return out
}

// RunState represents the lifecycle state of a pipeline run.
type RunState string

// Pipeline run states
const (
	StateNew        RunState = "new"
	StateParsing    RunState = "parsing"
	StateScoring    RunState = "scoring"
	StateValidating RunState = "validating"
	StateWriting    RunState = "writing"
	StateConverged  RunState = "converged"
	StateDegraded   RunState = "degraded"
	StateFailed     RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == StateConverged || s == StateDegraded || s == StateFailed
}

// Question is a targeted question emitted toward the conversation channel.
type Question struct {
	Cluster string `json:"cluster"`
	Text    string `json:"text"`
}

// PipelineRun owns a profile snapshot while refinement is in flight. The profile
// is handed off to persistent storage only once the run reaches a terminal state.
type PipelineRun struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Profile           Profile    `json:"profile"`
	CompletenessScore float64    `json:"completeness_score"` // 0-100, non-decreasing per run
	Iteration         int        `json:"iteration"`
	State             RunState   `json:"state"`
	PendingQuestions  []Question `json:"pending_questions"`
	QuestionsAsked    int        `json:"questions_asked"`
}
