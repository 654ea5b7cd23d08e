// Package profile implements the profile-refinement pipeline: four stateless
// stage strategies (parser, feedback, validator, writer) composed by a
// per-session orchestrator that drives the run state machine to convergence.
package profile

import (
	"context"
	"time"

	"github.com/jonathan/job-scout/internal/llm"
	"github.com/jonathan/job-scout/internal/types"
)

// Answer is a conversational answer paired with the cluster it addresses
type Answer struct {
	Cluster string `json:"cluster"`
	Field   string `json:"field,omitempty"`
	Text    string `json:"text"`
}

// Toggle is an explicit user instruction to include or exclude a cluster.
// Toggles override feedback-stage defaults.
type Toggle struct {
	Cluster   string `json:"cluster"`
	Include   bool   `json:"include"`
	Reason    string `json:"reason,omitempty"`
	HideDates *bool  `json:"hide_dates,omitempty"`
}

// StageContext carries the per-iteration inputs shared by all stages.
// Stages read from it and emit deltas; they never mutate the snapshot.
type StageContext struct {
	RawText        string
	Answers        []Answer
	Toggles        []Toggle
	TargetKeywords []string
	Caller         *llm.Caller // nil for pure stages
	MaxQuestions   int
	Now            time.Time
}

// ClusterDelta describes the changes one stage proposes for one cluster.
// Nil pointer fields mean "no change".
type ClusterDelta struct {
	Fields         map[string]string
	Items          []types.Item
	Reorder        bool // incoming item order takes precedence over existing
	Confidence     *float64
	Include        *bool
	PinInclude     bool // the Include change is an explicit user instruction
	OmissionReason *string
	HideDates      *bool
	PinHideDates   bool
	BiasRisk       *string
	LowConfidence  *bool
	Conflicts      []types.ValidationConflict
	ResolveField   string // marks conflicts on this field as resolved
}

// Delta is the output of one stage application
type Delta struct {
	Clusters  map[string]*ClusterDelta
	Questions []types.Question // feedback stage only
}

// NewDelta returns an empty delta
func NewDelta() *Delta {
	return &Delta{Clusters: make(map[string]*ClusterDelta)}
}

// Cluster returns the delta entry for a cluster, creating it if needed
func (d *Delta) Cluster(name string) *ClusterDelta {
	cd, ok := d.Clusters[name]
	if !ok {
		cd = &ClusterDelta{}
		d.Clusters[name] = cd
	}
	return cd
}

// Stage is a stateless strategy transforming a profile snapshot plus context
// into a delta. Stages are applied in a fixed sequence, so scalar conflicts
// resolve last-writer-wins in stage order.
type Stage interface {
	Name() string
	Apply(ctx context.Context, snapshot types.Profile, sc *StageContext) (*Delta, error)
}

// Merge applies a delta to the profile in place. Scalar cluster fields are
// overwritten (last writer wins across the stage sequence); list clusters are
// merged append-then-dedupe on each item's content-similarity key, never
// replaced wholesale.
func Merge(p types.Profile, d *Delta) {
	if d == nil {
		return
	}
	for name, cd := range d.Clusters {
		cluster, ok := p[name]
		if !ok {
			// Unknown cluster names are dropped rather than grown ad hoc;
			// the schema is fixed by types.ClusterNames.
			continue
		}
		applyClusterDelta(cluster, cd)
	}
}

func applyClusterDelta(c *types.Cluster, cd *ClusterDelta) {
	if len(cd.Fields) > 0 {
		if c.Fields == nil {
			c.Fields = make(map[string]string, len(cd.Fields))
		}
		for k, v := range cd.Fields {
			c.Fields[k] = v
		}
	}
	if len(cd.Items) > 0 {
		c.Items = mergeItems(c.Items, cd.Items, cd.Reorder)
	}
	if cd.Confidence != nil {
		c.Confidence = *cd.Confidence
	}
	if cd.Include != nil {
		c.Include = *cd.Include
		if cd.PinInclude {
			c.UserSetInclude = true
		}
	}
	if cd.OmissionReason != nil {
		c.OmissionReason = *cd.OmissionReason
	}
	if cd.HideDates != nil {
		c.HideDates = *cd.HideDates
		if cd.PinHideDates {
			c.UserSetHideDates = true
		}
	}
	if cd.BiasRisk != nil {
		c.BiasRisk = *cd.BiasRisk
	}
	if cd.LowConfidence != nil {
		c.LowConfidence = *cd.LowConfidence
	}
	if len(cd.Conflicts) > 0 {
		c.Conflicts = append(c.Conflicts, cd.Conflicts...)
	}
	if cd.ResolveField != "" {
		for i := range c.Conflicts {
			if c.Conflicts[i].Field == cd.ResolveField {
				c.Conflicts[i].Resolved = true
			}
		}
	}
}

// mergeItems merges incoming items into existing ones. On a dedupe-key match
// the incoming item replaces the stored one in place; new items are appended.
// With reorder set, the incoming order leads and unmatched existing items
// follow, preserving data while letting the writer stage prioritize.
func mergeItems(existing, incoming []types.Item, reorder bool) []types.Item {
	if reorder {
		out := make([]types.Item, 0, len(existing)+len(incoming))
		seen := make(map[string]bool, len(incoming))
		for _, it := range incoming {
			key := it.DedupeKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, it)
		}
		for _, it := range existing {
			if !seen[it.DedupeKey()] {
				seen[it.DedupeKey()] = true
				out = append(out, it)
			}
		}
		return out
	}

	index := make(map[string]int, len(existing))
	out := append([]types.Item(nil), existing...)
	for i, it := range out {
		index[it.DedupeKey()] = i
	}
	for _, it := range incoming {
		key := it.DedupeKey()
		if i, ok := index[key]; ok {
			out[i] = it
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	return out
}
