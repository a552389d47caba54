package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/chatguide/internal/plan"
)

type rawDocument struct {
	Language    string             `yaml:"language"`
	Plan        [][]string         `yaml:"plan"`
	Tasks       map[string]rawTask `yaml:"tasks"`
	Tones       map[string]string  `yaml:"tones"`
	Tone        any                `yaml:"tone"`
	Guardrails  any                `yaml:"guardrails"`
	State       map[string]any     `yaml:"state"`
	Adjustments []rawAdjustment    `yaml:"adjustments"`
	Limits      rawLimits          `yaml:"limits"`
}

type rawTask struct {
	Description string   `yaml:"description"`
	Expects     []any    `yaml:"expects"`
	Tools       []string `yaml:"tools"`
	Silent      bool     `yaml:"silent"`
}

type rawAdjustment struct {
	Name    string `yaml:"name"`
	When    any    `yaml:"when"`
	Actions []any  `yaml:"actions"`
}

type rawLimits struct {
	Retries       int    `yaml:"retries"`
	SilentChain   int    `yaml:"silent_chain"`
	HistoryWindow int    `yaml:"history_window"`
	InvokeTimeout string `yaml:"invoke_timeout"`
}

// Load reads and parses the conversation document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals, normalizes, validates and applies defaults.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	doc := &Document{
		Language: raw.Language,
		Plan:     raw.Plan,
		Tasks:    map[string]TaskDef{},
		Tones:    raw.Tones,
		State:    raw.State,
	}

	for id, rt := range raw.Tasks {
		expects, err := normalizeExpects(rt.Expects)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", id, err)
		}
		doc.Tasks[id] = TaskDef{
			Description: rt.Description,
			Expects:     expects,
			Tools:       rt.Tools,
			Silent:      rt.Silent,
		}
	}

	tone, err := normalizeTone(raw.Tone)
	if err != nil {
		return nil, err
	}
	doc.Tone = tone

	guardrails, err := normalizeGuardrails(raw.Guardrails)
	if err != nil {
		return nil, err
	}
	doc.Guardrails = guardrails

	for i, ra := range raw.Adjustments {
		def, err := decodeAdjustment(ra)
		if err != nil {
			return nil, fmt.Errorf("adjustment %d (%s): %w", i, ra.Name, err)
		}
		doc.Adjustments = append(doc.Adjustments, def)
	}

	doc.Limits = Limits{
		Retries:       raw.Limits.Retries,
		SilentChain:   raw.Limits.SilentChain,
		HistoryWindow: raw.Limits.HistoryWindow,
	}
	if raw.Limits.InvokeTimeout != "" {
		d, err := time.ParseDuration(raw.Limits.InvokeTimeout)
		if err != nil {
			return nil, fmt.Errorf("limits.invoke_timeout: %w", err)
		}
		doc.Limits.InvokeTimeout = d
	}

	ApplyDefaults(doc)

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks referential integrity: plan entries and adjustment names.
func (d *Document) Validate() error {
	if len(d.Plan) == 0 {
		return fmt.Errorf("config has no plan")
	}
	for i, block := range d.Plan {
		if len(block) == 0 {
			return fmt.Errorf("plan block %d is empty", i)
		}
		for _, id := range block {
			if _, ok := d.Tasks[id]; !ok {
				return fmt.Errorf("plan references unknown task %q", id)
			}
		}
	}

	seen := map[string]bool{}
	for _, a := range d.Adjustments {
		if a.Name == "" {
			return fmt.Errorf("adjustment with empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate adjustment name %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// normalizeExpects folds the polymorphic expects list (bare strings or
// objects) into ExpectDefinitions once. All later code works on the
// normalized form only.
func normalizeExpects(raw []any) ([]plan.ExpectDefinition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]plan.ExpectDefinition, 0, len(raw))
	for i, entry := range raw {
		switch v := entry.(type) {
		case string:
			out = append(out, plan.ExpectDefinition{Key: v, Type: plan.ExpectString})
		case map[string]any:
			def, err := expectFromMap(v)
			if err != nil {
				return nil, fmt.Errorf("expects[%d]: %w", i, err)
			}
			out = append(out, def)
		default:
			return nil, fmt.Errorf("expects[%d]: unsupported shape %T", i, entry)
		}
	}
	return out, nil
}

func expectFromMap(m map[string]any) (plan.ExpectDefinition, error) {
	var def plan.ExpectDefinition

	key, _ := m["key"].(string)
	if key == "" {
		return def, fmt.Errorf("missing key")
	}
	def.Key = key

	switch t, _ := m["type"].(string); t {
	case "", "string":
		def.Type = plan.ExpectString
	case "number":
		def.Type = plan.ExpectNumber
	case "enum":
		def.Type = plan.ExpectEnum
	default:
		return def, fmt.Errorf("unknown type %q", m["type"])
	}

	if v, ok := m["min"]; ok {
		n, ok := toFloat(v)
		if !ok {
			return def, fmt.Errorf("min must be a number")
		}
		def.Min = &n
	}
	if v, ok := m["max"]; ok {
		n, ok := toFloat(v)
		if !ok {
			return def, fmt.Errorf("max must be a number")
		}
		def.Max = &n
	}
	if v, ok := m["choices"]; ok {
		choices, err := toStringSlice(v)
		if err != nil {
			return def, fmt.Errorf("choices: %w", err)
		}
		def.Choices = choices
	}
	if v, ok := m["confirm"].(bool); ok {
		def.Confirm = v
	}

	if def.Type == plan.ExpectEnum && len(def.Choices) == 0 {
		return def, fmt.Errorf("enum expect %q has no choices", def.Key)
	}
	return def, nil
}

// normalizeTone accepts a single name or a list of names.
func normalizeTone(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		return toStringSlice(v)
	default:
		return nil, fmt.Errorf("tone must be a string or list, got %T", raw)
	}
}

// normalizeGuardrails folds a string, list or named map into one text
// block. Map entries are ordered by name for stable prompts.
func normalizeGuardrails(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []any:
		lines, err := toStringSlice(v)
		if err != nil {
			return "", fmt.Errorf("guardrails: %w", err)
		}
		return strings.Join(lines, "\n"), nil
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		lines := make([]string, 0, len(names))
		for _, name := range names {
			text, ok := v[name].(string)
			if !ok {
				return "", fmt.Errorf("guardrail %q is not a string", name)
			}
			lines = append(lines, text)
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "", fmt.Errorf("guardrails must be a string, list or map, got %T", raw)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toStringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("entry %d is not a string", i)
		}
		out[i] = s
	}
	return out, nil
}
