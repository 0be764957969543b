package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

// readFlowFile loads a flow document from JSON or YAML and checks it against
// the flow schema before decoding.
func readFlowFile(path string) (domain.FlowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.FlowDefinition{}, fmt.Errorf("failed to read flow file: %w", err)
	}

	document, err := toJSONDocument(path, raw)
	if err != nil {
		return domain.FlowDefinition{}, err
	}

	if err := domain.ValidateFlowDocument(document); err != nil {
		return domain.FlowDefinition{}, err
	}

	var flow domain.FlowDefinition
	if err := json.Unmarshal(document, &flow); err != nil {
		return domain.FlowDefinition{}, fmt.Errorf("%w: %w", domain.ErrInvalidFlow, err)
	}

	return flow, nil
}

func toJSONDocument(path string, raw []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var document any
		if err := yaml.Unmarshal(raw, &document); err != nil {
			return nil, fmt.Errorf("%w: not valid YAML: %w", domain.ErrInvalidFlow, err)
		}

		converted, err := json.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidFlow, err)
		}

		return converted, nil
	default:
		return raw, nil
	}
}

// parseInput decodes a JSON seed value. Text that is not JSON is used as a string.
func parseInput(inline, file string) (any, error) {
	raw := []byte(inline)

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		raw = data
	}

	if strings.TrimSpace(string(raw)) == "" {
		return nil, nil
	}

	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return string(raw), nil
	}

	return input, nil
}
