package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dohr-michael/chatguide/internal/adjust"
)

func decodeAdjustment(raw rawAdjustment) (AdjustmentDef, error) {
	var def AdjustmentDef
	if raw.Name == "" {
		return def, fmt.Errorf("missing name")
	}
	def.Name = raw.Name

	cond, err := decodeCondition(raw.When)
	if err != nil {
		return def, fmt.Errorf("when: %w", err)
	}
	def.Condition = cond

	if len(raw.Actions) == 0 {
		return def, fmt.Errorf("no actions")
	}
	for i, ra := range raw.Actions {
		action, err := decodeAction(ra)
		if err != nil {
			return def, fmt.Errorf("actions[%d]: %w", i, err)
		}
		def.Actions = append(def.Actions, action)
	}
	return def, nil
}

// decodeCondition maps the YAML condition shape onto the closed AST. Each
// node is a single-key map naming the operator; booleans are literals.
func decodeCondition(raw any) (adjust.Condition, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("missing condition")
	case bool:
		return adjust.Literal(v), nil
	case map[string]any:
		if len(v) != 1 {
			return nil, fmt.Errorf("condition must have exactly one operator, got %d", len(v))
		}
		for op, arg := range v {
			return decodeOperator(op, arg)
		}
	}
	return nil, fmt.Errorf("unsupported condition shape %T", raw)
}

func decodeOperator(op string, arg any) (adjust.Condition, error) {
	switch op {
	case "all", "any":
		items, ok := arg.([]any)
		if !ok {
			return nil, fmt.Errorf("%s expects a list", op)
		}
		children := make([]adjust.Condition, len(items))
		for i, item := range items {
			c, err := decodeCondition(item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
			}
			children[i] = c
		}
		if op == "all" {
			return adjust.All(children), nil
		}
		return adjust.Any(children), nil

	case "not":
		c, err := decodeCondition(arg)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return adjust.Not{C: c}, nil

	case "has":
		key, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("has expects a key string")
		}
		return adjust.Has{Key: key}, nil

	case "eq", "gt":
		m, ok := arg.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s expects {key, value}", op)
		}
		key, _ := m["key"].(string)
		if key == "" {
			return nil, fmt.Errorf("%s missing key", op)
		}
		if op == "eq" {
			return adjust.Eq{Key: key, Value: m["value"]}, nil
		}
		n, ok := toFloat(m["value"])
		if !ok {
			return nil, fmt.Errorf("gt value must be a number")
		}
		return adjust.Gt{Key: key, Value: n}, nil

	case "completed_contains":
		task, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("completed_contains expects a task id")
		}
		return adjust.CompletedContains{Task: task}, nil

	case "plan_index_is", "plan_index_gt":
		n, ok := toInt(arg)
		if !ok {
			return nil, fmt.Errorf("%s expects an index", op)
		}
		if op == "plan_index_is" {
			return adjust.PlanIndexIs{Index: n}, nil
		}
		return adjust.PlanIndexGt{Index: n}, nil

	case "tone_contains":
		tone, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("tone_contains expects a tone name")
		}
		return adjust.ToneContains{Tone: tone}, nil

	case "attempts_gt":
		m, ok := arg.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("attempts_gt expects {task, value}")
		}
		task, _ := m["task"].(string)
		if task == "" {
			return nil, fmt.Errorf("attempts_gt missing task")
		}
		n, ok := toInt(m["value"])
		if !ok {
			return nil, fmt.Errorf("attempts_gt value must be a number")
		}
		return adjust.AttemptsGt{Task: task, N: n}, nil
	}
	return nil, fmt.Errorf("unknown condition operator %q", op)
}

var shorthandRe = regexp.MustCompile(`^([\w.]+)\(([^)]*)\)$`)

// decodeAction accepts two shapes: a single-key map naming the action with
// structured arguments, or a shorthand call string such as
// "plan.remove_block(1)".
func decodeAction(raw any) (adjust.Action, error) {
	switch v := raw.(type) {
	case string:
		return decodeActionShorthand(v)
	case map[string]any:
		if len(v) != 1 {
			return nil, fmt.Errorf("action must have exactly one name, got %d", len(v))
		}
		for name, arg := range v {
			return decodeActionNamed(name, arg)
		}
	}
	return nil, fmt.Errorf("unsupported action shape %T", raw)
}

func decodeActionShorthand(s string) (adjust.Action, error) {
	m := shorthandRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, fmt.Errorf("malformed action %q", s)
	}
	name, rawArgs := m[1], strings.TrimSpace(m[2])

	switch name {
	case "plan.jump", "plan.jump_to", "plan.remove_block":
		n, err := strconv.Atoi(rawArgs)
		if err != nil {
			return nil, fmt.Errorf("%s expects an index: %w", name, err)
		}
		if name == "plan.remove_block" {
			return adjust.PlanRemoveBlock{Index: n}, nil
		}
		return adjust.PlanJump{Index: n}, nil
	case "tone.add":
		tone := strings.Trim(rawArgs, `"'`)
		if tone == "" {
			return nil, fmt.Errorf("tone.add expects a tone name")
		}
		return adjust.ToneAdd{Tone: tone}, nil
	}
	return nil, fmt.Errorf("unknown shorthand action %q", name)
}

func decodeActionNamed(name string, arg any) (adjust.Action, error) {
	switch name {
	case "plan.jump", "plan.jump_to":
		n, ok := toInt(arg)
		if !ok {
			return nil, fmt.Errorf("%s expects an index", name)
		}
		return adjust.PlanJump{Index: n}, nil

	case "plan.remove_block":
		n, ok := toInt(arg)
		if !ok {
			return nil, fmt.Errorf("plan.remove_block expects an index")
		}
		return adjust.PlanRemoveBlock{Index: n}, nil

	case "plan.insert_block", "plan.replace_block":
		m, ok := arg.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s expects {index, tasks}", name)
		}
		n, ok := toInt(m["index"])
		if !ok {
			return nil, fmt.Errorf("%s missing index", name)
		}
		tasks, err := toStringSlice(m["tasks"])
		if err != nil {
			return nil, fmt.Errorf("%s tasks: %w", name, err)
		}
		if name == "plan.insert_block" {
			return adjust.PlanInsertBlock{Index: n, Tasks: tasks}, nil
		}
		return adjust.PlanReplaceBlock{Index: n, Tasks: tasks}, nil

	case "tone.set":
		switch tv := arg.(type) {
		case string:
			return adjust.ToneSet{Tones: []string{tv}}, nil
		case []any:
			tones, err := toStringSlice(tv)
			if err != nil {
				return nil, fmt.Errorf("tone.set: %w", err)
			}
			return adjust.ToneSet{Tones: tones}, nil
		}
		return nil, fmt.Errorf("tone.set expects a name or list")

	case "tone.add":
		tone, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("tone.add expects a tone name")
		}
		return adjust.ToneAdd{Tone: tone}, nil

	case "state.set":
		m, ok := arg.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("state.set expects {key, value}")
		}
		key, _ := m["key"].(string)
		if key == "" {
			return nil, fmt.Errorf("state.set missing key")
		}
		return adjust.StateSet{Key: key, Value: m["value"]}, nil
	}
	return nil, fmt.Errorf("unknown action %q", name)
}
