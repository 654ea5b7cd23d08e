package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/job-scout/internal/llm"
	"github.com/jonathan/job-scout/internal/types"
)

// ProgressEvent reports a state transition during a pipeline run
type ProgressEvent struct {
	State     types.RunState `json:"state"`
	Iteration int            `json:"iteration"`
	Score     float64        `json:"score"`
	Message   string         `json:"message"`
}

// ProgressCallback is called on every orchestrator state transition
type ProgressCallback func(event ProgressEvent)

// Options configures an orchestrator
type Options struct {
	TargetScore   float64       // completeness target, default 90
	MaxIterations int           // refinement loop budget, default 2
	MaxQuestions  int           // questions per iteration, default 5
	IdleTimeout   time.Duration // session-idle wait for the next message, default 10m
	OnProgress    ProgressCallback
}

// defaults fills unset option values
func (o *Options) defaults() {
	if o.TargetScore == 0 {
		o.TargetScore = 90
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = 2
	}
	if o.MaxQuestions == 0 {
		o.MaxQuestions = 5
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 10 * time.Minute
	}
}

// Orchestrator drives one onboarding session through the stage sequence until
// the run converges, degrades, or fails. It is a single-threaded cooperative
// state machine: it suspends while awaiting the next conversational input or
// a completion-service response, and shares no mutable state with other
// sessions.
type Orchestrator struct {
	parser    Stage
	feedback  Stage
	validator Stage
	writer    Stage
	caller    *llm.Caller
	conv      Conversation
	opts      Options
}

// NewOrchestrator assembles the standard four-stage pipeline
func NewOrchestrator(caller *llm.Caller, conv Conversation, opts Options) *Orchestrator {
	opts.defaults()
	return &Orchestrator{
		parser:    &ParserStage{},
		feedback:  &FeedbackStage{},
		validator: &ValidatorStage{},
		writer:    &WriterStage{},
		caller:    caller,
		conv:      conv,
		opts:      opts,
	}
}

// Run refines the run's profile until a terminal state. The rawText argument
// is the extracted resume text; an empty string means the run relies entirely
// on conversation. The run's completeness score never decreases.
func (o *Orchestrator) Run(ctx context.Context, run *types.PipelineRun, rawText string) error {
	if run.Profile == nil {
		run.Profile = types.NewProfile()
	}

	degradedStages := make(map[string]bool)
	receivedAnswer := false

	// PARSING happens once; the refinement loop re-scores from conversation.
	o.transition(run, types.StateParsing, "parsing extracted text")
	delta, err := o.parser.Apply(ctx, run.Profile.Clone(), &StageContext{
		RawText:      rawText,
		Caller:       o.caller,
		MaxQuestions: o.opts.MaxQuestions,
	})
	if err != nil {
		if fatal := asFatal(err); fatal != nil {
			return fatal
		}
		degradedStages[o.parser.Name()] = true
	}
	Merge(run.Profile, delta)

	for {
		run.Iteration++

		o.transition(run, types.StateScoring, fmt.Sprintf("scoring iteration %d", run.Iteration))
		fdelta, _ := o.feedback.Apply(ctx, run.Profile.Clone(), &StageContext{MaxQuestions: o.opts.MaxQuestions})
		Merge(run.Profile, fdelta)
		run.PendingQuestions = fdelta.Questions

		msg := o.exchange(ctx, run, fdelta.Questions)
		answers, toggles := pairAnswers(fdelta.Questions, msg)
		if len(answers) > 0 {
			receivedAnswer = true
		}

		o.transition(run, types.StateValidating, "reconciling conversation")
		vdelta, _ := o.validator.Apply(ctx, run.Profile.Clone(), &StageContext{Answers: answers, Toggles: toggles})
		Merge(run.Profile, vdelta)

		o.transition(run, types.StateWriting, "writing prose and prioritizing")
		wdelta, err := o.writer.Apply(ctx, run.Profile.Clone(), &StageContext{
			Caller:         o.caller,
			TargetKeywords: targetKeywords(run.Profile),
		})
		Merge(run.Profile, wdelta) // partial writer output is still applied
		if err != nil {
			if fatal := asFatal(err); fatal != nil {
				return fatal
			}
			degradedStages[o.writer.Name()] = true
			run.Profile[types.ClusterSummary].LowConfidence = true
		}

		// Completeness is clamped to the previous value so a noisy re-score
		// can never regress a run.
		score := CompletenessScore(run.Profile)
		if score > run.CompletenessScore {
			run.CompletenessScore = score
		}

		if run.CompletenessScore >= o.opts.TargetScore || run.Iteration >= o.opts.MaxIterations {
			break
		}
	}

	o.finalize(run, rawText, receivedAnswer, degradedStages)
	return nil
}

// exchange emits the question set and suspends for the next inbound message.
// A session-idle timeout or a closed channel yields no message and the run
// advances with what it has.
func (o *Orchestrator) exchange(ctx context.Context, run *types.PipelineRun, questions []types.Question) *Message {
	if len(questions) == 0 || o.conv == nil {
		return nil
	}
	if err := o.conv.Ask(ctx, questions); err != nil {
		return nil
	}
	run.QuestionsAsked += len(questions)

	waitCtx, cancel := context.WithTimeout(ctx, o.opts.IdleTimeout)
	defer cancel()
	msg, err := o.conv.Next(waitCtx)
	if err != nil {
		return nil
	}
	return msg
}

// finalize classifies the terminal state and resolves anything the
// conversation left open.
func (o *Orchestrator) finalize(run *types.PipelineRun, rawText string, receivedAnswer bool, degradedStages map[string]bool) {
	switch {
	case rawText == "" && !receivedAnswer && allConfidenceZero(run.Profile):
		// Input starvation: nothing parsed, nothing answered, budget spent.
		o.transition(run, types.StateFailed, "no usable input after question budget exhausted")
	case len(degradedStages) > 0:
		markLowConfidence(run.Profile, degradedStages)
		o.transition(run, types.StateDegraded, fmt.Sprintf("finalized with degraded stages: %s", stageList(degradedStages)))
	default:
		o.transition(run, types.StateConverged, fmt.Sprintf("converged at %.0f", run.CompletenessScore))
	}

	// At the DEGRADED/FAILED boundary unresolved conflicts fall back to the
	// parsed value, which is already in place; they are just closed out.
	if run.State == types.StateDegraded || run.State == types.StateFailed {
		for _, cluster := range run.Profile {
			for i := range cluster.Conflicts {
				cluster.Conflicts[i].Resolved = true
			}
		}
	}
	run.PendingQuestions = nil
}

func (o *Orchestrator) transition(run *types.PipelineRun, state types.RunState, message string) {
	run.State = state
	if o.opts.OnProgress != nil {
		o.opts.OnProgress(ProgressEvent{
			State:     state,
			Iteration: run.Iteration,
			Score:     run.CompletenessScore,
			Message:   message,
		})
	}
}

// pairAnswers attaches unaddressed answers to pending questions positionally,
// matching how conversation frontends send one reply per question in order.
func pairAnswers(questions []types.Question, msg *Message) ([]Answer, []Toggle) {
	if msg.Empty() {
		return nil, nil
	}
	answers := make([]Answer, 0, len(msg.Answers))
	for i, ans := range msg.Answers {
		if ans.Cluster == "" && i < len(questions) {
			ans.Cluster = questions[i].Cluster
		}
		if ans.Cluster == "" || ans.Text == "" {
			continue
		}
		answers = append(answers, ans)
	}
	return answers, msg.Toggles
}

// targetKeywords derives target-role keywords from the skills cluster
func targetKeywords(p types.Profile) []string {
	skills, ok := p[types.ClusterSkills]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var keywords []string
	add := func(raw string) {
		for _, part := range strings.Split(raw, ",") {
			kw := strings.ToLower(strings.TrimSpace(part))
			if kw != "" && !seen[kw] {
				seen[kw] = true
				keywords = append(keywords, kw)
			}
		}
	}
	for _, item := range skills.Items {
		add(item.Title)
	}
	keys := make([]string, 0, len(skills.Fields))
	for k := range skills.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(skills.Fields[k])
	}
	return keywords
}

func allConfidenceZero(p types.Profile) bool {
	for _, cluster := range p {
		if cluster.Confidence > 0 {
			return false
		}
	}
	return true
}

func markLowConfidence(p types.Profile, degradedStages map[string]bool) {
	if !degradedStages["parser"] {
		return
	}
	for _, cluster := range p {
		if cluster.Confidence < confidentThreshold {
			cluster.LowConfidence = true
		}
	}
}

func stageList(stages map[string]bool) string {
	names := make([]string, 0, len(stages))
	for name := range stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// asFatal passes through only errors the run cannot absorb: everything except
// upstream AI failures and budget exhaustion, which degrade the stage instead.
func asFatal(err error) error {
	var upstream *llm.UpstreamAIError
	if errors.As(err, &upstream) || errors.Is(err, llm.ErrBudgetExhausted) {
		return nil
	}
	return err
}
