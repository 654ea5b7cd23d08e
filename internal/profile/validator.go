package profile

import (
	"context"
	"strings"

	"github.com/jonathan/job-scout/internal/types"
)

// ValidatorStage reconciles conversational answers against parsed values and
// applies explicit toggle instructions. On a direct conflict it records a
// ValidationConflict on the cluster instead of overwriting; a later
// conversation turn resolves it explicitly. It makes no completion-service
// calls.
type ValidatorStage struct{}

// Name returns the stage name
func (s *ValidatorStage) Name() string { return "validator" }

// Apply folds the latest conversation turn into the profile.
func (s *ValidatorStage) Apply(ctx context.Context, snapshot types.Profile, sc *StageContext) (*Delta, error) {
	delta := NewDelta()

	for _, answer := range sc.Answers {
		applyAnswer(snapshot, delta, answer)
	}

	for _, toggle := range sc.Toggles {
		if _, ok := snapshot[toggle.Cluster]; !ok {
			continue
		}
		cd := delta.Cluster(toggle.Cluster)
		include := toggle.Include
		cd.Include = &include
		cd.PinInclude = true
		if toggle.Reason != "" {
			reason := toggle.Reason
			cd.OmissionReason = &reason
		}
		if toggle.HideDates != nil {
			hide := *toggle.HideDates
			cd.HideDates = &hide
			cd.PinHideDates = true
		}
	}

	return delta, nil
}

// applyAnswer merges one answer into the delta. Answers to empty fields fill
// them and lift confidence; answers contradicting a parsed value become
// conflicts. A repeated answer matching an open conflict's answer value is
// treated as explicit confirmation and resolves it in the user's favor.
func applyAnswer(snapshot types.Profile, delta *Delta, answer Answer) {
	cluster, ok := snapshot[answer.Cluster]
	if !ok || answer.Text == "" {
		return
	}

	cd := delta.Cluster(answer.Cluster)
	field := answer.Field
	if field == "" {
		field = "value"
	}

	// Confirmation of an open conflict: user repeated their answer.
	for _, conflict := range cluster.Conflicts {
		if !conflict.Resolved && conflict.Field == field && equalValue(conflict.AnswerValue, answer.Text) {
			if cd.Fields == nil {
				cd.Fields = make(map[string]string)
			}
			cd.Fields[field] = answer.Text
			cd.ResolveField = field
			raiseConfidence(cd, cluster.Confidence)
			return
		}
	}

	if types.ListClusters[answer.Cluster] {
		// Conversational list answers arrive as free text; store as an item
		// with the answer as description so the writer can polish it.
		cd.Items = append(cd.Items, types.Item{Title: answer.Text})
		raiseConfidence(cd, cluster.Confidence)
		return
	}

	parsed, exists := cluster.Fields[field]
	if exists && parsed != "" && !equalValue(parsed, answer.Text) {
		cd.Conflicts = append(cd.Conflicts, types.ValidationConflict{
			Field:       field,
			ParsedValue: parsed,
			AnswerValue: answer.Text,
		})
		return
	}

	if cd.Fields == nil {
		cd.Fields = make(map[string]string)
	}
	cd.Fields[field] = answer.Text
	raiseConfidence(cd, cluster.Confidence)
}

// raiseConfidence lifts a cluster to at least answer-grade confidence.
// Direct answers are trusted more than parsed text but less than a settled
// cluster, so follow-up questions stop once answered.
func raiseConfidence(cd *ClusterDelta, current float64) {
	answered := settledThreshold
	if current > answered {
		answered = current
	}
	cd.Confidence = &answered
}

func equalValue(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
