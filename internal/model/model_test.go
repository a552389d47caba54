package model

import (
	"context"
	"errors"
	"testing"
)

func TestParseReply(t *testing.T) {
	raw := `{"assistant_reply":"Hi!","task_results":[{"task_id":"get_name","key":"user_name","value":"Ada"}],"tools":[]}`

	reply, err := ParseReply([]byte(raw))
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if reply.AssistantReply != "Hi!" {
		t.Errorf("AssistantReply = %q", reply.AssistantReply)
	}
	if len(reply.TaskResults) != 1 || reply.TaskResults[0].Value != "Ada" {
		t.Errorf("TaskResults = %+v", reply.TaskResults)
	}
}

func TestParseReplyCodeFences(t *testing.T) {
	raw := "```json\n{\"assistant_reply\":\"ok\",\"task_results\":[],\"tools\":[]}\n```"
	reply, err := ParseReply([]byte(raw))
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if reply.AssistantReply != "ok" {
		t.Errorf("AssistantReply = %q", reply.AssistantReply)
	}
}

func TestParseReplyMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"assistant_reply": }`} {
		_, err := ParseReply([]byte(raw))
		var malformed *MalformedError
		if !errors.As(err, &malformed) {
			t.Errorf("ParseReply(%q) err = %v, want MalformedError", raw, err)
		}
	}
}

func TestParseReplyDedupes(t *testing.T) {
	raw := `{"assistant_reply":"x","task_results":[
		{"task_id":"t","key":"age","value":"30"},
		{"task_id":"t","key":"age","value":"31"},
		{"task_id":"u","key":"age","value":"32"},
		{"task_id":"t","key":"","value":"drop"}
	]}`

	reply, err := ParseReply([]byte(raw))
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if len(reply.TaskResults) != 2 {
		t.Fatalf("TaskResults = %+v, want 2 after dedupe", reply.TaskResults)
	}
	if reply.TaskResults[0].Value != "30" {
		t.Errorf("dedupe must keep first, got %v", reply.TaskResults[0].Value)
	}
}

func TestScriptedInvoker(t *testing.T) {
	inv := &ScriptedInvoker{Responses: []string{
		`{"assistant_reply":"one","task_results":[],"tools":[]}`,
	}}

	reply, err := inv.Invoke(context.Background(), "prompt-1")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if reply.AssistantReply != "one" {
		t.Errorf("AssistantReply = %q", reply.AssistantReply)
	}
	if len(inv.Prompts) != 1 || inv.Prompts[0] != "prompt-1" {
		t.Errorf("Prompts = %v", inv.Prompts)
	}

	if _, err := inv.Invoke(context.Background(), "prompt-2"); err == nil {
		t.Error("expected error when script exhausted")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"HTTP 429 too many requests", ErrRateLimited},
		{"401 unauthorized", ErrAuth},
		{"context length exceeded", ErrContextTooLong},
		{"dial tcp: connection refused", ErrConnection},
	}
	for _, tt := range tests {
		got := ClassifyError(errors.New(tt.in))
		if !errors.Is(got, tt.want) {
			t.Errorf("ClassifyError(%q) = %v, want category %v", tt.in, got, tt.want)
		}
	}
	if ClassifyError(nil) != nil {
		t.Error("ClassifyError(nil) must be nil")
	}
}

func TestClassifyErrorKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:443: connection refused")
	got := ClassifyError(cause)
	if !errors.Is(got, cause) {
		t.Errorf("classified error lost its cause: %v", got)
	}
	other := errors.New("something unrelated")
	if ClassifyError(other) != other {
		t.Error("unrecognized error should pass through unchanged")
	}
}
