package prompt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
)

// Schema names a structured response shape. Wire is the model-facing
// (OpenAPI subset) form; the JSON Schema form validates what comes back.
type Schema struct {
	Name string
	Wire map[string]any
	json string
}

var (
	PersonaSchema = Schema{
		Name: "persona",
		Wire: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"name":            map[string]any{"type": "STRING", "description": "The persona's full name, which should be culturally appropriate for their country."},
				"age":             map[string]any{"type": "INTEGER", "description": "The persona's age."},
				"background":      map[string]any{"type": "STRING", "description": "A brief summary of the persona's background relevant to the scenario and their country."},
				"interests":       map[string]any{"type": "STRING", "description": "The persona's primary interests or goals."},
				"topicOfInterest": map[string]any{"type": "STRING", "description": "The main topic the persona is interested in discussing."},
				"concerns":        map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}, "description": "A list of 2-3 key concerns the persona has."},
				"personality":     map[string]any{"type": "STRING", "description": "A short description of the persona's personality (e.g., anxious, confident, confused, angry)."},
			},
			"required": []string{"name", "age", "background", "interests", "topicOfInterest", "concerns", "personality"},
		},
		json: `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "age": {"type": "integer", "minimum": 0},
    "background": {"type": "string"},
    "interests": {"type": "string"},
    "topicOfInterest": {"type": "string"},
    "concerns": {"type": "array", "items": {"type": "string"}},
    "personality": {"type": "string"}
  },
  "required": ["name", "age", "background", "interests", "topicOfInterest", "concerns", "personality"]
}`,
	}

	EvaluationSchema = Schema{
		Name: "evaluation",
		Wire: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"overallScore":    map[string]any{"type": "NUMBER", "description": "An overall score out of 10 for the trainee's performance."},
				"overallFeedback": map[string]any{"type": "STRING", "description": "A summary of the trainee's performance, highlighting strengths and key areas for improvement."},
				"evaluation": map[string]any{
					"type":        "ARRAY",
					"description": "A detailed breakdown of the performance based on specific criteria.",
					"items": map[string]any{
						"type": "OBJECT",
						"properties": map[string]any{
							"criteria": map[string]any{"type": "STRING", "description": "The name of the evaluation criterion as requested by the user."},
							"score":    map[string]any{"type": "NUMBER", "description": "A score from 1 to 10 for this specific criterion."},
							"feedback": map[string]any{"type": "STRING", "description": "Specific feedback and examples from the conversation for this criterion."},
						},
						"required": []string{"criteria", "score", "feedback"},
					},
				},
			},
			"required": []string{"overallScore", "overallFeedback", "evaluation"},
		},
		json: `{
  "type": "object",
  "properties": {
    "overallScore": {"type": "number", "minimum": 0, "maximum": 10},
    "overallFeedback": {"type": "string"},
    "evaluation": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "criteria": {"type": "string"},
          "score": {"type": "number", "minimum": 1, "maximum": 10},
          "feedback": {"type": "string"}
        },
        "required": ["criteria", "score", "feedback"]
      }
    }
  },
  "required": ["overallScore", "overallFeedback", "evaluation"]
}`,
	}
)

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	compiled = make(map[string]*jsonschema.Schema)
	for _, s := range []Schema{PersonaSchema, EvaluationSchema} {
		cs, err := compiler.Compile([]byte(s.json))
		if err != nil {
			compileErr = fmt.Errorf("compile %s schema: %w", s.Name, err)
			return
		}
		compiled[s.Name] = cs
	}
}

// Validate checks a model response against the schema's JSON Schema form.
func (s Schema) Validate(data []byte) error {
	compileOnce.Do(compileSchemas)
	if compileErr != nil {
		return compileErr
	}
	cs, ok := compiled[s.Name]
	if !ok {
		return fmt.Errorf("unknown schema %q", s.Name)
	}
	result := cs.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("%s schema validation failed: %v", s.Name, result.Errors)
}

// DecodePersona validates and decodes a persona response.
func DecodePersona(data []byte) (domain.Persona, error) {
	var p domain.Persona
	if err := PersonaSchema.Validate(data); err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode persona: %w", err)
	}
	return p, nil
}

// DecodeEvaluation validates and decodes an evaluation response.
func DecodeEvaluation(data []byte) (domain.EvaluationReport, error) {
	var r domain.EvaluationReport
	if err := EvaluationSchema.Validate(data); err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode evaluation: %w", err)
	}
	return r, nil
}

// JSONSchema returns the standard JSON Schema form, for providers that accept it directly.
func (s Schema) JSONSchema() json.RawMessage { return json.RawMessage(s.json) }
