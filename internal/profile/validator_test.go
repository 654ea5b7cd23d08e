package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-scout/internal/types"
)

func TestValidator_FillsEmptyFieldAndRaisesConfidence(t *testing.T) {
	p := types.NewProfile()

	stage := &ValidatorStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		Answers: []Answer{{Cluster: types.ClusterName, Text: "Jane Doe"}},
	})
	require.NoError(t, err)

	Merge(p, delta)
	assert.Equal(t, "Jane Doe", p[types.ClusterName].Fields["value"])
	assert.GreaterOrEqual(t, p[types.ClusterName].Confidence, 0.8)
}

func TestValidator_ConflictRecordedNotOverwritten(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterName].Fields = map[string]string{"value": "Jane Doe"}

	stage := &ValidatorStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		Answers: []Answer{{Cluster: types.ClusterName, Text: "Janet Doe"}},
	})
	require.NoError(t, err)

	Merge(p, delta)
	assert.Equal(t, "Jane Doe", p[types.ClusterName].Fields["value"], "parsed value stays until resolved")

	conflicts := p.UnresolvedConflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "Jane Doe", conflicts[0].ParsedValue)
	assert.Equal(t, "Janet Doe", conflicts[0].AnswerValue)
}

func TestValidator_RepeatedAnswerResolvesConflict(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterName].Fields = map[string]string{"value": "Jane Doe"}
	p[types.ClusterName].Conflicts = []types.ValidationConflict{
		{Field: "value", ParsedValue: "Jane Doe", AnswerValue: "Janet Doe"},
	}

	stage := &ValidatorStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		// Confirmation is case-insensitive
		Answers: []Answer{{Cluster: types.ClusterName, Text: "janet doe"}},
	})
	require.NoError(t, err)

	Merge(p, delta)
	assert.Equal(t, "janet doe", p[types.ClusterName].Fields["value"], "confirmed answer wins")
	assert.Empty(t, p.UnresolvedConflicts())
}

func TestValidator_ListAnswerBecomesItem(t *testing.T) {
	p := types.NewProfile()

	stage := &ValidatorStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		Answers: []Answer{{Cluster: types.ClusterWork, Text: "Staff engineer at ACME since 2021"}},
	})
	require.NoError(t, err)

	Merge(p, delta)
	items := p[types.ClusterWork].Items
	require.Len(t, items, 1)
	assert.Equal(t, "Staff engineer at ACME since 2021", items[0].Title)
}

func TestValidator_ToggleExcludesWithReason(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterVolunteer].Items = []types.Item{{Title: "Coordinator"}}

	stage := &ValidatorStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		Toggles: []Toggle{{Cluster: types.ClusterVolunteer, Include: false, Reason: "prefer to keep private"}},
	})
	require.NoError(t, err)

	Merge(p, delta)
	vol := p[types.ClusterVolunteer]
	assert.False(t, vol.Include)
	assert.Equal(t, "prefer to keep private", vol.OmissionReason)
	assert.Len(t, vol.Items, 1, "excluded content is retained")
}

func TestValidator_ToggleOverridesHideDatesDefault(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterEducation].Items = []types.Item{{Title: "BSc", EndDate: "2004-06"}}
	p[types.ClusterEducation].HideDates = true

	show := false
	stage := &ValidatorStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		Toggles: []Toggle{{Cluster: types.ClusterEducation, Include: true, HideDates: &show}},
	})
	require.NoError(t, err)

	Merge(p, delta)
	edu := p[types.ClusterEducation]
	assert.False(t, edu.HideDates, "explicit user choice wins over bias default")
	assert.True(t, edu.Include)
	assert.True(t, edu.UserSetInclude)
	assert.True(t, edu.UserSetHideDates)
}

func TestValidator_UnknownClusterAnswerIgnored(t *testing.T) {
	p := types.NewProfile()

	stage := &ValidatorStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		Answers: []Answer{{Cluster: "hobbies", Text: "chess"}},
		Toggles: []Toggle{{Cluster: "hobbies", Include: false}},
	})
	require.NoError(t, err)
	assert.Empty(t, delta.Clusters)
}
