package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// practiceSessionSchema is the shape the agent must produce before the
// client will mirror a session into the store. Extra fields are allowed;
// the contract covers only what the lifecycle reads.
var practiceSessionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"session_id": map[string]any{"type": "string", "minLength": 1},
		"student_id": map[string]any{"type": "string"},
		"status": map[string]any{
			"type": "string",
			"enum": []any{"active", "complete"},
		},
		"current_block_index": map[string]any{"type": "integer", "minimum": 0},
		"blocks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"block_id": map[string]any{"type": "string", "minLength": 1},
					"title":    map[string]any{"type": "string"},
				},
				"required": []any{"block_id"},
			},
		},
		"blocks_progress": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"block_id":      map[string]any{"type": "string", "minLength": 1},
					"mastery_score": map[string]any{"type": "number"},
					"is_complete":   map[string]any{"type": "boolean"},
				},
				"required": []any{"block_id"},
			},
		},
		"total_blocks":    map[string]any{"type": "integer", "minimum": 0},
		"overall_mastery": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
	"required": []any{"session_id", "status", "current_block_index"},
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(practiceSessionSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(b, &def); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		const schemaURL = "schema://practice-session.json"
		if err := c.AddResource(schemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}

// DecodePracticeSession validates raw agent output against the session
// schema and decodes it. Rejecting here keeps malformed payloads out of
// the store.
func DecodePracticeSession(raw json.RawMessage) (*PracticeSession, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("practice session is not valid JSON: %w", err)
	}

	schema, err := compiled()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("practice session failed validation: %w", err)
	}

	var ps PracticeSession
	if err := json.Unmarshal(raw, &ps); err != nil {
		return nil, fmt.Errorf("decode practice session: %w", err)
	}
	if err := ps.CheckIndex(); err != nil {
		return nil, err
	}
	return &ps, nil
}
