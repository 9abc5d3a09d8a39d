package dashboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/syncsentinel/syncsentinel/internal/logging"
	"github.com/syncsentinel/syncsentinel/internal/pipeline"
)

// RecordView is a file record as sent to clients.
type RecordView struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Type     string `json:"type"`
	Section  string `json:"section"`
	FileName string `json:"file_name"`
}

// SinkView is a sink outcome as sent to clients.
type SinkView struct {
	Sink  string `json:"sink"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// ResultView is the JSON form of a pipeline.Result.
type ResultView struct {
	ID          string        `json:"id"`
	Path        string        `json:"path"`
	Format      string        `json:"format"`
	SyncName    string        `json:"sync_name,omitempty"`
	Date        string        `json:"date,omitempty"`
	StartTime   string        `json:"start_time,omitempty"`
	Records     []RecordView  `json:"records"`
	Sinks       []SinkView    `json:"sinks"`
	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`
}

type helloData struct {
	Recent []pipeline.Event `json:"recent"`
}

// NewResultView converts r for JSON output.
func NewResultView(r *pipeline.Result) ResultView {
	v := ResultView{
		ID:          r.ID.String(),
		Path:        r.Path,
		Format:      r.Format.String(),
		Date:        r.Date(),
		Records:     make([]RecordView, 0, len(r.Records)),
		Sinks:       make([]SinkView, 0, len(r.Sinks)),
		ProcessedAt: r.ProcessedAt,
		Duration:    r.Duration,
	}
	if r.Run != nil {
		v.SyncName = r.Run.SyncName
		v.StartTime = r.Run.StartTime
	}
	for _, rec := range r.Records {
		v.Records = append(v.Records, RecordView{
			Date:     v.Date,
			Time:     rec.Timestamp,
			Type:     string(rec.FileType),
			Section:  rec.Section,
			FileName: rec.FileName,
		})
	}
	for _, o := range r.Sinks {
		sv := SinkView{Sink: o.Sink, Rows: o.Rows}
		if o.Err != nil {
			sv.Error = o.Err.Error()
		}
		v.Sinks = append(v.Sinks, sv)
	}
	return v
}

// Report implements pipeline.Reporter. Every event is kept in the recent
// history and broadcast; a completed run is followed by its result.
func (s *Server) Report(e pipeline.Event) {
	s.remember(e)

	msg, err := newMessage(MessageTypeEvent, e)
	if err != nil {
		s.logger.Error("failed to marshal event", "error", err)
		return
	}
	s.Broadcast(msg)

	if e.Stage != pipeline.StageComplete {
		return
	}
	last := s.last()
	if last == nil || last.ID != e.RunID {
		return
	}
	msg, err = newMessage(MessageTypeResult, NewResultView(last))
	if err != nil {
		s.logger.Error("failed to marshal result", "error", err)
		return
	}
	s.Broadcast(msg)
}

func (s *Server) remember(e pipeline.Event) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	s.recent = append(s.recent, e)
	if over := len(s.recent) - s.recentMax; over > 0 {
		s.recent = append(s.recent[:0:0], s.recent[over:]...)
	}
}

// Recent returns the retained events, oldest first.
func (s *Server) Recent() []pipeline.Event {
	s.recentMu.RLock()
	defer s.recentMu.RUnlock()
	return append([]pipeline.Event{}, s.recent...)
}

func newMessage(t MessageType, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Timestamp: time.Now(), Data: raw}, nil
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context(), s.logger)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// handleEvents returns the recent event history.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Recent())
}

// handleLast returns the last result as JSON.
func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	last := s.last()
	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no log processed yet"})
		return
	}
	writeJSON(w, http.StatusOK, NewResultView(last))
}

// handleLastTSV returns the last result as the tab-separated clipboard block.
func (s *Server) handleLastTSV(w http.ResponseWriter, r *http.Request) {
	last := s.last()
	if last == nil {
		http.Error(w, "no log processed yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	_, _ = fmt.Fprint(w, last.TSV())
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>SyncSentinel</title>
</head>
<body>
    <h1>SyncSentinel</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Recent events: <a href="/events">/events</a></p>
    <p>Last result: <a href="/last">/last</a> (<a href="/last.tsv">tsv</a>)</p>
    <p>Health check: <a href="/healthz">/healthz</a></p>
</body>
</html>`, r.Host)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
