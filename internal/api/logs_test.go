package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/keeper/internal/model"
)

func createPendingJob(t *testing.T, srv *Server) *model.Job {
	t.Helper()
	j := &model.Job{
		ID:        model.NewID(),
		Kind:      model.KindCloudSync,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	srv.engine.Broker().Open(j.ID)
	if err := srv.store.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return j
}

// readSSE collects data events and the names of named events from an SSE body.
func readSSE(t *testing.T, resp *http.Response) (data []string, named []string) {
	t.Helper()
	scanner := bufio.NewScanner(resp.Body)
	var current []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			named = append(named, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			current = append(current, strings.TrimPrefix(line, "data: "))
		case line == "" && len(current) > 0:
			data = append(data, strings.Join(current, "\n"))
			current = nil
		}
	}
	return data, named
}

func TestStreamLogsNotFound(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs/nonexistent/logs")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamLogsFinishedJobReplaysHistory(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	j := createPendingJob(t, srv)
	if err := srv.store.UpdateJobStatus(ctx, j.ID, model.StatusRunning); err != nil {
		t.Fatalf("pending→running: %v", err)
	}
	for i, line := range []string{"pull empty at version 0", "push skipped at version 0"} {
		if err := srv.store.InsertJobLogLine(ctx, j.ID, i, line); err != nil {
			t.Fatalf("InsertJobLogLine: %v", err)
		}
	}
	if err := srv.store.UpdateJobStatus(ctx, j.ID, model.StatusCompleted); err != nil {
		t.Fatalf("running→completed: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs/" + j.ID + "/logs")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	data, named := readSSE(t, resp)
	if len(data) != 3 || data[0] != "pull empty at version 0" || data[2] != "stream complete" {
		t.Errorf("data events = %v", data)
	}
	if len(named) != 1 || named[0] != "done" {
		t.Errorf("named events = %v, want [done]", named)
	}
}

func TestStreamLogsReceivesEvents(t *testing.T) {
	srv := newTestServer(t)
	j := createPendingJob(t, srv)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/v1/jobs/"+j.ID+"/logs", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	broker := srv.engine.Broker()
	broker.Publish(j.ID, "hello world")
	broker.Publish(j.ID, "goodbye")
	broker.Close(j.ID)

	data, named := readSSE(t, resp)
	if len(data) != 3 {
		t.Fatalf("got %d events, want 3: %v", len(data), data)
	}
	if data[0] != "hello world" || data[1] != "goodbye" {
		t.Errorf("events = %v", data)
	}
	if len(named) != 1 || named[0] != "done" {
		t.Errorf("named events = %v, want [done]", named)
	}
}

func TestStreamLogsMultiLineData(t *testing.T) {
	srv := newTestServer(t)
	j := createPendingJob(t, srv)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/v1/jobs/"+j.ID+"/logs", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	broker := srv.engine.Broker()
	broker.Publish(j.ID, "sync failed\n  caused by: portal unreachable")
	broker.Close(j.ID)

	data, _ := readSSE(t, resp)
	want := "sync failed\n  caused by: portal unreachable"
	if len(data) != 2 || data[0] != want {
		t.Errorf("events = %q, want first %q", data, want)
	}
}

func TestGetLogHistory(t *testing.T) {
	env := newTestEnv(t)
	j := createPendingJob(t, env.srv)
	if err := env.srv.store.InsertJobLogLine(context.Background(), j.ID, 0, "first"); err != nil {
		t.Fatalf("InsertJobLogLine: %v", err)
	}

	var got logHistoryResponse
	if code := env.do(t, "GET", "/v1/jobs/"+j.ID+"/logs/history", nil, &got); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if got.JobID != j.ID || len(got.Lines) != 1 || got.Lines[0].Line != "first" {
		t.Errorf("history = %+v", got)
	}

	if code := env.do(t, "GET", "/v1/jobs/missing/logs/history", nil, nil); code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", code)
	}
}

func TestStreamLogsUnknownTopicReplaysStore(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	// A running job whose topic the broker no longer holds.
	j := &model.Job{ID: model.NewID(), Kind: model.KindCloudSync, Status: model.StatusPending, CreatedAt: time.Now().UTC()}
	if err := srv.store.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := srv.store.UpdateJobStatus(ctx, j.ID, model.StatusRunning); err != nil {
		t.Fatalf("pending→running: %v", err)
	}
	if err := srv.store.InsertJobLogLine(ctx, j.ID, 0, "pull applied at version 2"); err != nil {
		t.Fatalf("InsertJobLogLine: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, "GET", ts.URL+"/v1/jobs/"+j.ID+"/logs", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	data, named := readSSE(t, resp)
	if len(data) != 2 || data[0] != "pull applied at version 2" {
		t.Errorf("data events = %v", data)
	}
	if len(named) != 1 || named[0] != "done" {
		t.Errorf("named events = %v, want [done]", named)
	}
}
