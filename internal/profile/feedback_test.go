package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-scout/internal/types"
)

func TestCompletenessScore_EmptyProfileIsZero(t *testing.T) {
	assert.Zero(t, CompletenessScore(types.NewProfile()))
}

func TestCompletenessScore_FullWeightAtConfidenceThreshold(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterWork].Items = []types.Item{{Title: "Engineer"}}
	p[types.ClusterWork].Confidence = 0.5

	assert.Equal(t, 20.0, CompletenessScore(p))
}

func TestCompletenessScore_PartialBelowThreshold(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterWork].Items = []types.Item{{Title: "Engineer"}}
	p[types.ClusterWork].Confidence = 0.4

	assert.InDelta(t, 8.0, CompletenessScore(p), 0.001)
}

func TestCompletenessScore_ExcludedClusterScoresByConfidence(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterWork].Items = []types.Item{{Title: "Engineer"}}
	p[types.ClusterWork].Confidence = 0.9
	p[types.ClusterWork].Include = false

	// Excluded clusters never earn full weight
	assert.InDelta(t, 18.0, CompletenessScore(p), 0.001)
}

func TestCompletenessScore_FullProfileCapsAtHundred(t *testing.T) {
	p := types.NewProfile()
	for _, name := range types.ClusterNames {
		p[name].Confidence = 0.9
		if types.ListClusters[name] {
			p[name].Items = []types.Item{{Title: "entry"}}
		} else {
			p[name].Fields = map[string]string{"value": "content"}
		}
	}
	assert.Equal(t, 100.0, CompletenessScore(p))
}

func TestSelectQuestions_CapsAtMax(t *testing.T) {
	questions := selectQuestions(types.NewProfile(), 5)
	require.Len(t, questions, 5)

	// The heaviest gap leads
	assert.Equal(t, types.ClusterWork, questions[0].Cluster)
	for _, q := range questions {
		assert.NotEmpty(t, q.Text)
	}
}

func TestSelectQuestions_SkipsSettledClusters(t *testing.T) {
	p := types.NewProfile()
	for _, name := range types.ClusterNames {
		p[name].Confidence = 0.9
		p[name].Fields = map[string]string{"value": "done"}
	}
	p[types.ClusterSkills].Confidence = 0.3

	questions := selectQuestions(p, 5)
	require.Len(t, questions, 1)
	assert.Equal(t, types.ClusterSkills, questions[0].Cluster)
}

func TestFeedback_HidesOldGraduationDatesByDefault(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterEducation].Items = []types.Item{
		{Title: "BSc Computer Science", Organization: "State University", EndDate: "2005-06"},
	}

	stage := &FeedbackStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		MaxQuestions: 5,
		Now:          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	Merge(p, delta)
	edu := p[types.ClusterEducation]
	assert.True(t, edu.Include, "old education stays included")
	assert.True(t, edu.HideDates, "dates default to hidden")
	assert.Equal(t, RiskAgeInference, edu.BiasRisk)
}

func TestFeedback_RecentGraduationKeepsDates(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterEducation].Items = []types.Item{
		{Title: "MSc Data Science", EndDate: "2022-06"},
	}

	stage := &FeedbackStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		MaxQuestions: 5,
		Now:          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	Merge(p, delta)
	assert.False(t, p[types.ClusterEducation].HideDates)
}

func TestFeedback_PinnedToggleNotReDefaulted(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterEducation].Items = []types.Item{
		{Title: "BSc Computer Science", EndDate: "2005-06"},
	}
	p[types.ClusterEducation].Include = false
	p[types.ClusterEducation].UserSetInclude = true

	stage := &FeedbackStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{
		MaxQuestions: 5,
		Now:          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	cd, ok := delta.Clusters[types.ClusterEducation]
	require.True(t, ok)
	assert.Nil(t, cd.Include, "a pinned exclusion is left alone")
	require.NotNil(t, cd.HideDates, "unpinned date visibility still defaults")

	Merge(p, delta)
	assert.False(t, p[types.ClusterEducation].Include)
}

func TestFeedback_VolunteerFlaggedNeverAutoHidden(t *testing.T) {
	p := types.NewProfile()
	p[types.ClusterVolunteer].Items = []types.Item{
		{Title: "Food bank coordinator", Organization: "Community Kitchen"},
	}

	stage := &FeedbackStage{}
	delta, err := stage.Apply(context.Background(), p.Clone(), &StageContext{MaxQuestions: 5})
	require.NoError(t, err)

	cd, ok := delta.Clusters[types.ClusterVolunteer]
	require.True(t, ok)
	require.NotNil(t, cd.BiasRisk)
	assert.Equal(t, RiskCulturalInference, *cd.BiasRisk)
	assert.Nil(t, cd.Include, "volunteer experience is flagged, not hidden")
	assert.Nil(t, cd.HideDates)
}

func TestQuestionText(t *testing.T) {
	text, err := QuestionText(types.ClusterSkills)
	require.NoError(t, err)
	assert.NotEmpty(t, text)

	_, err = QuestionText("hobbies")
	assert.Error(t, err)
}
