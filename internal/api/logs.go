package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/keeper/internal/model"
)

// eventStream writes server-sent events and flushes after each one when the
// underlying writer supports it.
type eventStream struct {
	w       io.Writer
	flusher http.Flusher
}

func openEventStream(w http.ResponseWriter) *eventStream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	es := &eventStream{w: w}
	es.flusher, _ = w.(http.Flusher)
	es.flush()
	return es
}

func (es *eventStream) flush() {
	if es.flusher != nil {
		es.flusher.Flush()
	}
}

// line sends one log line. Embedded newlines become separate data fields of
// the same event.
func (es *eventStream) line(text string) error {
	var b strings.Builder
	for seg := range strings.SplitSeq(text, "\n") {
		b.WriteString("data: ")
		b.WriteString(seg)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(es.w, b.String()); err != nil {
		return err
	}
	es.flush()
	return nil
}

func (es *eventStream) done() {
	fmt.Fprint(es.w, "event: done\ndata: stream complete\n\n")
	es.flush()
}

func (s *Server) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "job")
		return
	}

	logStreams.Inc()
	defer logStreams.Dec()

	broker := s.engine.Broker()
	if model.Terminal(j.Status) || !broker.Known(id) {
		s.replayLogs(w, r, id)
		return
	}

	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("clear write deadline for log stream", "job_id", id, "error", err)
	}

	// Subscribing replays what the broker has seen so far. A job that finished
	// after the status check closes the channel right after that replay.
	ch, unsub := broker.Subscribe(id)
	defer unsub()

	es := openEventStream(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case text, open := <-ch:
			if !open {
				es.done()
				return
			}
			if es.line(text) != nil {
				return
			}
		}
	}
}

// replayLogs serves a job from the store when the broker holds nothing for it:
// the job finished, predates this process, or its topic was evicted.
func (s *Server) replayLogs(w http.ResponseWriter, r *http.Request, id string) {
	stored, err := s.store.GetJobLogLines(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "job")
		return
	}
	es := openEventStream(w)
	for _, l := range stored {
		if es.line(l.Line) != nil {
			return
		}
	}
	es.done()
}

type logHistoryLine struct {
	Seq       int    `json:"seq"`
	Line      string `json:"line"`
	CreatedAt string `json:"created_at"`
}

type logHistoryResponse struct {
	JobID string           `json:"job_id"`
	Lines []logHistoryLine `json:"lines"`
}

func (s *Server) handleGetLogHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetJob(r.Context(), id); err != nil {
		s.fail(w, r, err, "job")
		return
	}

	stored, err := s.store.GetJobLogLines(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "job")
		return
	}

	resp := logHistoryResponse{JobID: id, Lines: make([]logHistoryLine, 0, len(stored))}
	for _, l := range stored {
		resp.Lines = append(resp.Lines, logHistoryLine{
			Seq:       l.Seq,
			Line:      l.Line,
			CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}
