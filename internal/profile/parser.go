package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/job-scout/internal/llm"
	"github.com/jonathan/job-scout/internal/prompts"
	"github.com/jonathan/job-scout/internal/types"
)

// parserOutputSchema constrains the LLM extraction output before it is
// trusted. A response that fails validation counts as invalid_response.
const parserOutputSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "fields": {"type": "object", "additionalProperties": {"type": "string"}},
      "items": {
        "type": "array",
        "items": {
          "type": "object",
          "properties": {
            "title": {"type": "string"},
            "organization": {"type": "string"},
            "start_date": {"type": "string"},
            "end_date": {"type": "string"},
            "description": {"type": "string"}
          },
          "required": ["title"]
        }
      },
      "confidence": {"type": "number", "minimum": 0, "maximum": 1}
    },
    "required": ["confidence"]
  }
}`

// parsedCluster mirrors one cluster entry in the parser LLM output
type parsedCluster struct {
	Fields     map[string]string `json:"fields,omitempty"`
	Items      []types.Item      `json:"items,omitempty"`
	Confidence float64           `json:"confidence"`
}

// ParserStage extracts clusters from raw resume text. Empty text yields an
// all-empty delta with confidence 0, which downstream stages interpret as
// "rely entirely on conversation".
type ParserStage struct{}

// Name returns the stage name
func (s *ParserStage) Name() string { return "parser" }

// Apply extracts as many clusters as the completion service can confidently
// populate from the raw text.
func (s *ParserStage) Apply(ctx context.Context, snapshot types.Profile, sc *StageContext) (*Delta, error) {
	delta := NewDelta()
	if sc.RawText == "" {
		zero := 0.0
		for _, name := range types.ClusterNames {
			delta.Cluster(name).Confidence = &zero
		}
		return delta, nil
	}

	prompt := prompts.Format(prompts.MustGet("parsing.json", "extract_clusters"), map[string]string{
		"Text": sc.RawText,
	})

	raw, err := sc.Caller.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, err
	}

	parsed, err := decodeParserOutput(raw)
	if err != nil {
		return nil, err
	}

	for name, pc := range parsed {
		if _, known := snapshot[name]; !known {
			continue
		}
		cd := delta.Cluster(name)
		cd.Fields = pc.Fields
		cd.Items = pc.Items
		conf := clamp01(pc.Confidence)
		cd.Confidence = &conf
	}
	return delta, nil
}

// decodeParserOutput validates the LLM JSON against the parser schema and
// unmarshals it. Schema or JSON failures are classified as invalid_response
// so the caller's retry budget applies.
func decodeParserOutput(raw string) (map[string]parsedCluster, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(parserOutputSchema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return nil, &llm.UpstreamAIError{Kind: llm.KindInvalidResponse, Err: fmt.Errorf("parser output is not valid JSON: %w", err)}
	}
	if !result.Valid() {
		return nil, &llm.UpstreamAIError{Kind: llm.KindInvalidResponse, Err: fmt.Errorf("parser output failed schema validation: %v", result.Errors())}
	}

	var parsed map[string]parsedCluster
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, &llm.UpstreamAIError{Kind: llm.KindInvalidResponse, Err: fmt.Errorf("failed to decode parser output: %w", err)}
	}
	return parsed, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
