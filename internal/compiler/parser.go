package compiler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/stepgraph/internal/dto"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format names a workflow document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// knownContextKeys are decoded into WorkflowContext fields; other keys go to Extra.
var knownContextKeys = map[string]bool{
	"contest_name": true, "problem_name": true, "language": true,
	"env_type": true, "command_type": true, "workspace_path": true, "extra": true,
}

// Parser converts raw workflow documents into Steps.
// Step types are not validated here: unknown types surface as construction
// errors when the graph is built.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes data in the given format.
func (p *Parser) Parse(data []byte, format Format) (*domain.Workflow, error) {
	raw, err := decodeRaw(data, format)
	if err != nil {
		return nil, err
	}

	var doc dto.Workflow
	switch v := raw.(type) {
	case nil:
		return &domain.Workflow{}, nil
	case []any:
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("step %d: expected a mapping, got %T", i, item)
			}
			doc.Steps = append(doc.Steps, m)
		}
	case map[string]any:
		if err := decode(v, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode workflow: %w", err)
		}
	default:
		return nil, fmt.Errorf("workflow must be a list of steps or a mapping, got %T", raw)
	}

	wf := &domain.Workflow{Steps: make([]domain.Step, 0, len(doc.Steps))}
	if wf.Context, err = parseContext(doc.Context); err != nil {
		return nil, err
	}
	for i, m := range doc.Steps {
		step, err := parseStep(m)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		wf.Steps = append(wf.Steps, step)
	}
	return wf, nil
}

func decodeRaw(data []byte, format Format) (any, error) {
	var raw any
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatTOML:
		var m map[string]any
		err = toml.Unmarshal(data, &m)
		if m != nil {
			raw = m
		}
	case FormatYAML, "":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported workflow format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s workflow: %w", format, err)
	}
	return raw, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func parseStep(m map[string]any) (domain.Step, error) {
	var s dto.Step
	if err := decode(m, &s); err != nil {
		return domain.Step{}, err
	}
	timeout, err := parseTimeout(s.Timeout)
	if err != nil {
		return domain.Step{}, err
	}

	step := domain.Step{
		Type:         domain.StepType(strings.ToLower(strings.TrimSpace(s.Type))),
		Cmd:          s.Cmd,
		AllowFailure: s.AllowFailure,
		ShowOutput:   s.ShowOutput,
		Name:         s.Name,
		DependsOn:    s.DependsOn,
		Cwd:          s.Cwd,
		Timeout:      timeout,
	}
	// A present but empty depends_on makes the step a root.
	if _, present := m["depends_on"]; present && step.DependsOn == nil {
		step.DependsOn = []string{}
	}
	return step, nil
}

func parseTimeout(v any) (time.Duration, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		if t == "" {
			return 0, nil
		}
		if d, err := time.ParseDuration(t); err == nil {
			return d, nil
		}
		secs, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout %q", t)
		}
		return seconds(secs), nil
	case int:
		return seconds(float64(t)), nil
	case int64:
		return seconds(float64(t)), nil
	case uint64:
		return seconds(float64(t)), nil
	case float64:
		return seconds(t), nil
	}
	return 0, fmt.Errorf("invalid timeout %v (%T)", v, v)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func parseContext(m map[string]any) (domain.WorkflowContext, error) {
	var wctx domain.WorkflowContext
	if len(m) == 0 {
		return wctx, nil
	}
	known := make(map[string]any, len(m))
	extra := make(map[string]string)
	for k, v := range m {
		if knownContextKeys[k] {
			known[k] = v
			continue
		}
		extra[k] = fmt.Sprint(v)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &wctx})
	if err != nil {
		return wctx, err
	}
	if err := dec.Decode(known); err != nil {
		return wctx, fmt.Errorf("failed to decode context: %w", err)
	}
	if len(extra) > 0 && wctx.Extra == nil {
		wctx.Extra = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		wctx.Extra[k] = v
	}
	return wctx, nil
}
