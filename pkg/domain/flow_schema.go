package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const flowSchemaJSON = `{
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "id": {"type": "string"},
    "nodes": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "data": {"type": ["object", "null"]}
        }
      }
    },
    "edges": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "source": {"type": "string"},
          "target": {"type": "string"}
        }
      }
    }
  }
}`

var (
	flowSchemaOnce sync.Once
	flowSchema     *jsonschema.Schema
	flowSchemaErr  error
)

func compiledFlowSchema() (*jsonschema.Schema, error) {
	flowSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("flow.json", strings.NewReader(flowSchemaJSON)); err != nil {
			flowSchemaErr = fmt.Errorf("failed to add flow schema: %w", err)
			return
		}

		flowSchema, flowSchemaErr = compiler.Compile("flow.json")
	})

	return flowSchema, flowSchemaErr
}

// ValidateFlowDocument checks a raw flow document against the flow shape.
func ValidateFlowDocument(raw []byte) error {
	schema, err := compiledFlowSchema()
	if err != nil {
		return err
	}

	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return fmt.Errorf("%w: not valid JSON: %w", ErrInvalidFlow, err)
	}

	if err := schema.Validate(document); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("%w: %s", ErrInvalidFlow, strings.Join(flattenSchemaErrors(validationErr), "; "))
		}

		return fmt.Errorf("%w: %w", ErrInvalidFlow, err)
	}

	return nil
}

// ValidateFlow validates an already decoded flow definition.
func ValidateFlow(flow FlowDefinition) error {
	raw, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to encode flow: %w", err)
	}

	if err := ValidateFlowDocument(raw); err != nil {
		return err
	}

	if err := flow.ValidateNodeIDs(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFlow, err)
	}

	return nil
}

func flattenSchemaErrors(err *jsonschema.ValidationError) []string {
	var messages []string

	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		messages = append(messages, fmt.Sprintf("at '%s': %s", location, err.Message))
	}

	for _, cause := range err.Causes {
		messages = append(messages, flattenSchemaErrors(cause)...)
	}

	return messages
}
