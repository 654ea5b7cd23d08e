package profile

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jonathan/job-scout/internal/types"
)

// DefaultWeights is the cluster weight table used for the completeness score.
// A cluster contributes its full weight only when included with confidence of
// at least confidentThreshold; otherwise it contributes a fraction.
var DefaultWeights = map[string]float64{
	types.ClusterName:      5,
	types.ClusterContact:   10,
	types.ClusterWork:      20,
	types.ClusterEducation: 15,
	types.ClusterSkills:    15,
	types.ClusterSummary:   10,
	types.ClusterCerts:     5,
	types.ClusterProjects:  10,
	types.ClusterVolunteer: 5,
	types.ClusterLanguages: 5,
}

const (
	// confidentThreshold is the confidence at which a cluster earns full weight
	confidentThreshold = 0.5
	// settledThreshold is the confidence above which a cluster is never re-asked about
	settledThreshold = 0.8
	// hideDateYears is the age beyond which graduation dates default to hidden
	hideDateYears = 15
)

// Bias risk labels attached to clusters by the static risk table
const (
	RiskAgeInference      = "age_inference"
	RiskCulturalInference = "cultural_inference"
)

// CompletenessScore computes the weighted completeness of a profile on a
// 0-100 scale. Empty clusters contribute nothing; populated clusters below
// the confidence threshold contribute proportionally.
func CompletenessScore(p types.Profile) float64 {
	total := 0.0
	for name, weight := range DefaultWeights {
		cluster, ok := p[name]
		if !ok || cluster.Empty() {
			continue
		}
		if cluster.Include && cluster.Confidence >= confidentThreshold {
			total += weight
		} else {
			total += weight * clamp01(cluster.Confidence)
		}
	}
	if total > 100 {
		total = 100
	}
	return total
}

// questionTemplates maps clusters to the question asked when they score low
var questionTemplates = map[string]string{
	types.ClusterName:      "What name would you like at the top of your profile?",
	types.ClusterContact:   "What is the best email or phone number to reach you?",
	types.ClusterSummary:   "How would you describe yourself professionally in two or three sentences?",
	types.ClusterWork:      "Can you walk me through your most recent roles, including titles, employers, and dates?",
	types.ClusterEducation: "What degrees or formal education have you completed, and where?",
	types.ClusterSkills:    "Which skills and tools do you use most in your work?",
	types.ClusterCerts:     "Do you hold any certifications or licenses worth listing?",
	types.ClusterProjects:  "Are there projects, personal or professional, you'd like to showcase?",
	types.ClusterVolunteer: "Have you done volunteer work you might want to include? It's entirely optional.",
	types.ClusterLanguages: "Which languages do you speak, and at what level?",
}

// FeedbackStage scores completeness, emits targeted questions for the
// lowest-scoring clusters, and applies the static bias-risk table. It makes
// no completion-service calls.
type FeedbackStage struct{}

// Name returns the stage name
func (s *FeedbackStage) Name() string { return "feedback" }

// Apply produces questions for the weakest clusters and bias-policy defaults.
func (s *FeedbackStage) Apply(ctx context.Context, snapshot types.Profile, sc *StageContext) (*Delta, error) {
	delta := NewDelta()
	delta.Questions = selectQuestions(snapshot, sc.MaxQuestions)
	applyBiasPolicies(snapshot, delta, sc.Now)
	return delta, nil
}

// selectQuestions picks up to max questions targeting the clusters that would
// add the most completeness, skipping any cluster already settled.
func selectQuestions(p types.Profile, max int) []types.Question {
	type gap struct {
		cluster string
		missing float64
	}
	var gaps []gap
	for name, weight := range DefaultWeights {
		cluster, ok := p[name]
		if !ok {
			continue
		}
		if cluster.Confidence >= settledThreshold {
			continue
		}
		earned := 0.0
		if !cluster.Empty() {
			if cluster.Include && cluster.Confidence >= confidentThreshold {
				earned = weight
			} else {
				earned = weight * clamp01(cluster.Confidence)
			}
		}
		if weight-earned <= 0 {
			continue
		}
		gaps = append(gaps, gap{cluster: name, missing: weight - earned})
	}

	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].missing > gaps[j].missing })

	if max > 0 && len(gaps) > max {
		gaps = gaps[:max]
	}
	questions := make([]types.Question, 0, len(gaps))
	for _, g := range gaps {
		questions = append(questions, types.Question{Cluster: g.cluster, Text: questionTemplates[g.cluster]})
	}
	return questions
}

// applyBiasPolicies evaluates the static cluster risk table. Policies set
// defaults only; a value the user pinned with an explicit toggle is never
// re-defaulted on a later iteration.
func applyBiasPolicies(p types.Profile, delta *Delta, now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}

	// Old graduation dates invite age inference: keep the education included
	// but hide its dates by default.
	if edu, ok := p[types.ClusterEducation]; ok && !edu.Empty() {
		for _, item := range edu.Items {
			year := graduationYear(item)
			if year > 0 && now.Year()-year > hideDateYears {
				cd := delta.Cluster(types.ClusterEducation)
				if !edu.UserSetInclude {
					include := true
					cd.Include = &include
				}
				if !edu.UserSetHideDates {
					hide := true
					cd.HideDates = &hide
				}
				risk := RiskAgeInference
				cd.BiasRisk = &risk
				break
			}
		}
	}

	// Volunteer experience carries cultural-inference risk. Flag it so the
	// user can decide; it is never auto-hidden.
	if vol, ok := p[types.ClusterVolunteer]; ok && !vol.Empty() && vol.BiasRisk == "" {
		risk := RiskCulturalInference
		delta.Cluster(types.ClusterVolunteer).BiasRisk = &risk
	}
}

// graduationYear extracts the completion year of an education item
func graduationYear(item types.Item) int {
	date := item.EndDate
	if date == "" {
		date = item.StartDate
	}
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// QuestionText returns the canonical question for a cluster, used by
// conversation frontends that re-render pending questions.
func QuestionText(cluster string) (string, error) {
	text, ok := questionTemplates[cluster]
	if !ok {
		return "", fmt.Errorf("no question template for cluster %q", cluster)
	}
	return text, nil
}
