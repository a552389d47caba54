package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dohr-michael/chatguide/internal/adjust"
	"github.com/dohr-michael/chatguide/internal/plan"
)

const sampleYAML = `
language: fr
plan:
  - [greet]
  - [ask_name, ask_age]
  - [recommend]
tasks:
  greet:
    description: Greet the user
    silent: true
  ask_name:
    description: Ask the user's name
    expects:
      - name
  ask_age:
    description: Ask the user's age
    expects:
      - key: age
        type: number
        min: 1
        max: 120
        confirm: true
    tools: [show_slider]
  recommend:
    description: Recommend a plan
    expects:
      - key: tier
        type: enum
        choices: [basic, premium]
tones:
  warm: Be warm and personal.
  brisk: Keep answers short.
tone: warm
guardrails:
  - Never give medical advice.
  - Never quote internal prices.
state:
  source: web
adjustments:
  - name: returning_user
    when:
      all:
        - has: name
        - not: {completed_contains: recommend}
    actions:
      - plan.jump: 2
      - tone.add: brisk
  - name: drop_intro
    when: {plan_index_gt: 0}
    actions:
      - "plan.remove_block(0)"
limits:
  retries: 3
  invoke_timeout: 10s
`

func parseSample(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestParseNormalizesExpects(t *testing.T) {
	doc := parseSample(t)

	name := doc.Tasks["ask_name"].Expects
	if len(name) != 1 || name[0].Key != "name" || name[0].Type != plan.ExpectString {
		t.Errorf("string shorthand not normalized: %+v", name)
	}

	age := doc.Tasks["ask_age"].Expects[0]
	if age.Type != plan.ExpectNumber || age.Min == nil || *age.Min != 1 || age.Max == nil || *age.Max != 120 {
		t.Errorf("number expect not normalized: %+v", age)
	}
	if !age.Confirm {
		t.Error("confirm flag lost")
	}

	tier := doc.Tasks["recommend"].Expects[0]
	if tier.Type != plan.ExpectEnum || len(tier.Choices) != 2 {
		t.Errorf("enum expect not normalized: %+v", tier)
	}
}

func TestParseToneAndGuardrails(t *testing.T) {
	doc := parseSample(t)
	if len(doc.Tone) != 1 || doc.Tone[0] != "warm" {
		t.Errorf("tone = %v, want [warm]", doc.Tone)
	}
	if !strings.Contains(doc.Guardrails, "medical advice") || !strings.Contains(doc.Guardrails, "internal prices") {
		t.Errorf("guardrails not folded: %q", doc.Guardrails)
	}
	if got := doc.ToneText([]string{"warm", "unknown"}); !strings.Contains(got, "warm and personal") || !strings.Contains(got, "unknown") {
		t.Errorf("ToneText = %q", got)
	}
}

func TestParseLimitsDefaults(t *testing.T) {
	doc := parseSample(t)
	if doc.Limits.Retries != 3 {
		t.Errorf("Retries = %d, want 3", doc.Limits.Retries)
	}
	if doc.Limits.InvokeTimeout != 10*time.Second {
		t.Errorf("InvokeTimeout = %v, want 10s", doc.Limits.InvokeTimeout)
	}
	if doc.Limits.SilentChain != 8 {
		t.Errorf("SilentChain default = %d, want 8", doc.Limits.SilentChain)
	}
	if doc.Limits.HistoryWindow != 10 {
		t.Errorf("HistoryWindow default = %d, want 10", doc.Limits.HistoryWindow)
	}
}

func TestParseAdjustments(t *testing.T) {
	doc := parseSample(t)
	if len(doc.Adjustments) != 2 {
		t.Fatalf("adjustments = %d, want 2", len(doc.Adjustments))
	}

	ru := doc.Adjustments[0]
	all, ok := ru.Condition.(adjust.All)
	if !ok || len(all) != 2 {
		t.Fatalf("condition not decoded as all: %T", ru.Condition)
	}
	if _, ok := all[0].(adjust.Has); !ok {
		t.Errorf("all[0] = %T, want Has", all[0])
	}
	not, ok := all[1].(adjust.Not)
	if !ok {
		t.Fatalf("all[1] = %T, want Not", all[1])
	}
	if _, ok := not.C.(adjust.CompletedContains); !ok {
		t.Errorf("not.C = %T, want CompletedContains", not.C)
	}
	if len(ru.Actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(ru.Actions))
	}
	if jump, ok := ru.Actions[0].(adjust.PlanJump); !ok || jump.Index != 2 {
		t.Errorf("actions[0] = %#v, want PlanJump{2}", ru.Actions[0])
	}

	// Shorthand string form.
	di := doc.Adjustments[1]
	if rm, ok := di.Actions[0].(adjust.PlanRemoveBlock); !ok || rm.Index != 0 {
		t.Errorf("shorthand action = %#v, want PlanRemoveBlock{0}", di.Actions[0])
	}
}

func TestParseRejectsUnknownPlanTask(t *testing.T) {
	bad := `
plan:
  - [nope]
tasks:
  greet:
    description: hi
`
	if _, err := Parse([]byte(bad)); err == nil || !strings.Contains(err.Error(), "unknown task") {
		t.Errorf("expected unknown task error, got %v", err)
	}
}

func TestParseRejectsEnumWithoutChoices(t *testing.T) {
	bad := `
plan:
  - [pick]
tasks:
  pick:
    description: choose
    expects:
      - key: tier
        type: enum
`
	if _, err := Parse([]byte(bad)); err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("expected enum choices error, got %v", err)
	}
}

func TestBuildPlanAndTaskFactory(t *testing.T) {
	doc := parseSample(t)
	p := doc.BuildPlan()
	if p.Len() != 3 {
		t.Fatalf("plan len = %d, want 3", p.Len())
	}
	task := p.GetTask("ask_age")
	if task == nil || len(task.Expects) != 1 {
		t.Fatalf("ask_age not built from definition: %+v", task)
	}

	unknown := doc.Task("ghost")
	if !unknown.Unresolved {
		t.Error("unknown task id should produce an unresolved placeholder")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Language != "fr" {
		t.Errorf("Language = %q, want fr", doc.Language)
	}
}
