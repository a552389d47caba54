package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dohr-michael/chatguide/internal/checkpoint"
	"github.com/dohr-michael/chatguide/internal/guide"
	"github.com/dohr-michael/chatguide/internal/model"
)

const testConfig = `
plan:
  - [get_age]
  - [recommend]
tasks:
  get_age:
    description: Ask the user their age
    expects:
      - key: age
        type: number
        min: 1
        max: 120
  recommend:
    description: Recommend something
`

func newTestServer(t *testing.T, responses ...string) *httptest.Server {
	t.Helper()
	s := NewServer(Options{
		Store:   checkpoint.NewFileStore(t.TempDir()),
		Invoker: &model.ScriptedInvoker{Responses: responses},
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t,
		`{"assistant_reply":"How old are you?","task_results":[]}`,
		`{"assistant_reply":"Got it, 34.","task_results":[{"task_id":"get_age","key":"age","value":34}]}`,
		`{"assistant_reply":"Here is my pick.","task_results":[]}`,
	)

	var created createSessionResponse
	resp := postJSON(t, ts.URL+"/api/sessions", createSessionRequest{Config: testConfig}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	if created.SessionID == "" || created.Reply != "How old are you?" {
		t.Fatalf("created = %+v", created)
	}

	var turn guide.TurnResult
	resp = postJSON(t, ts.URL+"/api/sessions/"+created.SessionID+"/turn", turnRequest{Message: "I'm 34"}, &turn)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d", resp.StatusCode)
	}
	if turn.Reply != "Got it, 34." {
		t.Errorf("turn reply = %q", turn.Reply)
	}

	var session struct {
		Status      guide.Status   `json:"status"`
		State       map[string]any `json:"state"`
		CurrentTask string         `json:"current_task"`
	}
	getJSON(t, ts.URL+"/api/sessions/"+created.SessionID, &session)
	if session.State["age"] != float64(34) {
		t.Errorf("state age = %v", session.State["age"])
	}
	if session.CurrentTask != "recommend" {
		t.Errorf("current task = %q", session.CurrentTask)
	}

	resp = postJSON(t, ts.URL+"/api/sessions/"+created.SessionID+"/turn", turnRequest{Message: "ok"}, &turn)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("turn 2 status = %d", resp.StatusCode)
	}
	if turn.Status != guide.StatusComplete {
		t.Errorf("final status = %s", turn.Status)
	}
}

func TestPromptEndpoint(t *testing.T) {
	ts := newTestServer(t,
		`{"assistant_reply":"How old are you?","task_results":[]}`,
	)

	var created createSessionResponse
	postJSON(t, ts.URL+"/api/sessions", createSessionRequest{Config: testConfig}, &created)

	var out struct {
		Prompt string `json:"prompt"`
	}
	getJSON(t, ts.URL+"/api/sessions/"+created.SessionID+"/prompt", &out)
	if !strings.Contains(out.Prompt, "CURRENT TASK") {
		t.Errorf("prompt missing task marker:\n%s", out.Prompt)
	}
}

func TestCreateSessionRejectsBadConfig(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/sessions", createSessionRequest{Config: "plan: [[ghost]]"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTurnOnUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/sessions/nope/turn", turnRequest{Message: "hi"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t,
		`{"assistant_reply":"How old are you?","task_results":[]}`,
	)

	var created createSessionResponse
	postJSON(t, ts.URL+"/api/sessions", createSessionRequest{Config: testConfig}, &created)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+created.SessionID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	var ids struct {
		Sessions []string `json:"sessions"`
	}
	getJSON(t, ts.URL+"/api/sessions", &ids)
	if len(ids.Sessions) != 0 {
		t.Errorf("sessions after delete = %v", ids.Sessions)
	}
}
