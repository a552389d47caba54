package prompt

import (
	"strings"
	"testing"

	"github.com/dohr-michael/chatguide/internal/convo"
	"github.com/dohr-michael/chatguide/internal/plan"
)

func sampleView() View {
	max := 120.0
	return View{
		Language: "fr",
		History: []convo.Message{
			{Role: convo.RoleUser, Content: "bonjour"},
			{Role: convo.RoleAssistant, Content: "Bonjour !"},
		},
		State:      map[string]any{"name": "Marie", "age": nil, "city": "Lyon"},
		Guardrails: "Never give medical advice.",
		CurrentTask: &plan.Task{
			ID:          "ask_age",
			Description: "Ask the user their age",
			Expects:     []plan.ExpectDefinition{{Key: "age", Type: plan.ExpectNumber, Max: &max}},
		},
		PendingTasks: []*plan.Task{
			{
				ID:          "ask_age",
				Description: "Ask the user their age",
				Expects:     []plan.ExpectDefinition{{Key: "age", Type: plan.ExpectNumber, Max: &max}},
			},
			{ID: "ask_city", Description: "Ask where the user lives"},
		},
		NextBlockTask: &plan.Task{ID: "recommend_plan"},
		ToneText:      "Warm and concise",
	}
}

func TestBuildDeterministic(t *testing.T) {
	v := sampleView()
	first := Build(v)
	for i := 0; i < 5; i++ {
		if got := Build(v); got != first {
			t.Fatalf("build %d differs from first build", i+1)
		}
	}
}

func TestBuildSections(t *testing.T) {
	out := Build(sampleView())

	for _, want := range []string{
		`always in language "fr"`,
		"user: bonjour",
		"assistant: Bonjour !",
		"Never give medical advice.",
		currentTaskMarker,
		"age must be a number of at most 120.",
		"UP NEXT (do not start yet, mention only for a smooth hand-off): recommend_plan",
		"Warm and concise",
		"OUTPUT FORMAT:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildStateSorted(t *testing.T) {
	out := Build(sampleView())
	age := strings.Index(out, "- age:")
	city := strings.Index(out, "- city:")
	name := strings.Index(out, "- name:")
	if age < 0 || city < 0 || name < 0 {
		t.Fatalf("state entries missing from prompt")
	}
	if !(age < city && city < name) {
		t.Errorf("state keys not sorted: age=%d city=%d name=%d", age, city, name)
	}
}

func TestBuildEmptyHistoryAndState(t *testing.T) {
	out := Build(View{})
	if !strings.Contains(out, "(no messages yet)") {
		t.Errorf("missing empty-history placeholder")
	}
	if !strings.Contains(out, "(empty)") {
		t.Errorf("missing empty-state placeholder")
	}
	if !strings.Contains(out, "Natural and helpful") {
		t.Errorf("missing default tone")
	}
	if strings.Contains(out, "GUARDRAILS") {
		t.Errorf("guardrails section rendered with no guardrails")
	}
}

func TestBuildMultiTaskFocusLine(t *testing.T) {
	out := Build(sampleView())
	if !strings.Contains(out, "you have 2 tasks in this block") {
		t.Errorf("missing multi-task focus line")
	}
	if !strings.Contains(out, `Focus on "ask_age" first`) {
		t.Errorf("missing focus target")
	}
}

func TestBuildRetryDirectives(t *testing.T) {
	v := sampleView()
	v.Attempts = 1
	v.RetryDirectives = []string{"The previous value was rejected: value 150 is above maximum 120. Ask again."}
	out := Build(v)
	if !strings.Contains(out, "SYSTEM: The previous value was rejected") {
		t.Errorf("missing retry directive")
	}
	if !strings.Contains(out, "(attempt 2)") {
		t.Errorf("missing attempt counter on current task")
	}
}
