package batchsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/algebrix/internal/store"
)

// Candidate is a batch offered by the remote source.
type Candidate struct {
	ID             string               `json:"id"`
	GenerationDate time.Time            `json:"generationDate"`
	SourceURL      string               `json:"sourceUrl,omitempty"`
	ProblemCount   int                  `json:"problemCount"`
	Problems       []store.ProblemInput `json:"problems"`
}

// BatchInput returns the batch row for c. An empty sourceURL keeps the
// candidate's own value.
func (c *Candidate) BatchInput(sourceURL string) store.BatchInput {
	if c.SourceURL != "" {
		sourceURL = c.SourceURL
	}
	return store.BatchInput{
		ID:             c.ID,
		GenerationDate: c.GenerationDate,
		SourceURL:      sourceURL,
		ProblemCount:   c.ProblemCount,
	}
}

var answerValue = []any{
	map[string]any{"type": "string"},
	map[string]any{"type": "number"},
}

// candidateSchema is the contract a fetched batch document must satisfy.
// Unknown fields are tolerated so the producer can add metadata.
var candidateSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id": map[string]any{
			"type":      "string",
			"minLength": 1,
		},
		"generationDate": map[string]any{
			"type":   "string",
			"format": "date-time",
		},
		"sourceUrl": map[string]any{
			"type": "string",
		},
		"problemCount": map[string]any{
			"type":    "integer",
			"minimum": 0,
		},
		"problems": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":        map[string]any{"type": "string"},
					"batchId":   map[string]any{"type": "string"},
					"equation":  map[string]any{"type": "string", "minLength": 1},
					"direction": map[string]any{"type": "string"},
					"answer": map[string]any{
						"anyOf": append(append([]any{}, answerValue...), map[string]any{
							"type":     "array",
							"minItems": 1,
							"items":    map[string]any{"anyOf": answerValue},
						}),
					},
					"solutionSteps": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"explanation":    map[string]any{"type": "string"},
								"mathExpression": map[string]any{"type": "string"},
								"isEquation":     map[string]any{"type": "boolean"},
							},
							"required": []any{"explanation", "mathExpression"},
						},
					},
					"variables": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"difficulty": map[string]any{
						"type": "string",
						"enum": []any{"easy", "medium", "hard"},
					},
					"problemType": map[string]any{
						"type": "string",
						"enum": problemTypeEnum(),
					},
				},
				"required": []any{"equation", "direction", "answer", "solutionSteps", "difficulty", "problemType"},
			},
		},
	},
	"required": []any{"id", "generationDate", "problemCount", "problems"},
}

func problemTypeEnum() []any {
	out := make([]any, len(store.ProblemTypes))
	for i, t := range store.ProblemTypes {
		out[i] = string(t)
	}
	return out
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// batchSchema compiles candidateSchema on first use.
func batchSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants the decoded JSON form, not Go map literals with
		// typed slices, so round-trip through encoding/json.
		defBytes, err := json.Marshal(candidateSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		def, err := jsonschema.UnmarshalJSON(bytes.NewReader(defBytes))
		if err != nil {
			compileErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		c.AssertFormat()
		const schemaURL = "schema://problem-batch.json"
		if err := c.AddResource(schemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// ParseCandidate validates raw against the batch contract and decodes it.
// Returns *ValidationError when the document does not conform.
func ParseCandidate(raw []byte) (*Candidate, error) {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, &ValidationError{Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	schema, err := batchSchema()
	if err != nil {
		return nil, fmt.Errorf("compile batch schema: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, &ValidationError{Content: raw, Err: fmt.Errorf("schema validation failed: %w", err)}
	}

	var c Candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, &ValidationError{Content: raw, Err: fmt.Errorf("decode batch: %w", err)}
	}
	c.GenerationDate = c.GenerationDate.UTC()
	return &c, nil
}
