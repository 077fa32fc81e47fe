package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	"github.com/nexusfin/loan-orchestrator/agent/workflow"
)

type fakeEngine struct {
	reply   string
	err     error
	threads []string
}

func (f *fakeEngine) HandleMessage(_ context.Context, threadID, text string) (string, error) {
	f.threads = append(f.threads, threadID)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeEngine) HandleMessageStream(_ context.Context, threadID, text string) (<-chan workflow.Event, error) {
	f.threads = append(f.threads, threadID)
	if f.err != nil {
		return nil, f.err
	}
	events := make(chan workflow.Event, 3)
	events <- workflow.Event{Type: workflow.EventDelta, Text: "Hello "}
	events <- workflow.Event{Type: workflow.EventDelta, Text: "there"}
	events <- workflow.Event{Type: workflow.EventDone, Text: f.reply}
	close(events)
	return events, nil
}

func newTestServer(engine ChatEngine) *httptest.Server {
	s := New(Config{Addr: ":0"}, engine)
	return httptest.NewServer(s.Handler())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestChatReturnsReply(t *testing.T) {
	engine := &fakeEngine{reply: "Hi! How much would you like to borrow?"}
	srv := newTestServer(engine)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/chat", map[string]string{"message": "hello", "thread_id": "t1"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Response != engine.reply || out.ThreadID != "t1" {
		t.Fatalf("response = %+v", out)
	}
}

func TestChatGeneratesThreadID(t *testing.T) {
	engine := &fakeEngine{reply: "ok"}
	srv := newTestServer(engine)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/chat", map[string]string{"message": "hello"})
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ThreadID == "" {
		t.Fatal("a missing thread id must be generated")
	}
	if len(engine.threads) != 1 || engine.threads[0] != out.ThreadID {
		t.Fatalf("engine saw threads %v, response carried %q", engine.threads, out.ThreadID)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/chat", map[string]string{"message": "   "})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatMapsValidationErrors(t *testing.T) {
	engine := &fakeEngine{err: fmt.Errorf("%w: thread id is required", contractx.ErrValidation)}
	srv := newTestServer(engine)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/chat", map[string]string{"message": "hi", "thread_id": "t1"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatStreamEmitsSSE(t *testing.T) {
	engine := &fakeEngine{reply: "Hello there"}
	srv := newTestServer(engine)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/chat/stream", map[string]string{"message": "hello", "thread_id": "t1"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var deltaEvents, doneEvents int
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "event: delta":
			deltaEvents++
		case line == "event: done":
			doneEvents++
		}
	}
	if deltaEvents != 2 || doneEvents != 1 {
		t.Fatalf("saw %d delta and %d done events", deltaEvents, doneEvents)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
