package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voicebridge/vad-engine/pkg/events"
	"github.com/voicebridge/vad-engine/pkg/session"
	"github.com/voicebridge/vad-engine/pkg/trace"
)

// batchRequest is one chunk of audio analyzed over plain HTTP. The
// session is stateful across requests under the same session_id, so a
// client without WebSocket support still gets calibration and
// hysteresis.
type batchRequest struct {
	SessionID string              `json:"session_id,omitempty"`
	Audio     string              `json:"audio"`
	Config    *events.ConfigPatch `json:"config,omitempty"`
}

// batchResponse carries every event the chunk produced, in order.
type batchResponse struct {
	SessionID string               `json:"session_id"`
	Events    []events.ServerEvent `json:"events"`
}

func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/v1/audio", s.handleBatchAudio)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.manager.Len(),
	})
}

// handleBatchAudio processes one chunk synchronously and returns the
// resulting events. The session's sink is bound to the request for its
// duration and detached afterwards; mixing batch and WebSocket traffic
// on the same session ID is unsupported.
func (s *Server) handleBatchAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, span := trace.StartSpan(r.Context(), "vad.batch_audio")
	defer span.End()

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		http.Error(w, "audio is not valid base64", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int(trace.AttrAudioDataSize, len(payload)))

	collector := &eventCollector{}
	sess, _, err := s.manager.Init(ctx, req.SessionID, req.Config, collector.sink())
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, session.ErrSessionNotFound) {
			log.Printf("batch init %q: %v", req.SessionID, err)
		}
		trace.RecordError(span, err)
		http.Error(w, err.Error(), status)
		return
	}
	defer s.manager.Detach(sess.ID)
	span.SetAttributes(trace.SessionAttrs(sess.ID)...)

	if err := sess.ProcessSync(ctx, payload); err != nil {
		trace.RecordError(span, err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(batchResponse{
		SessionID: sess.ID,
		Events:    collector.drain(),
	})
}

// eventCollector buffers session events emitted during a synchronous
// request.
type eventCollector struct {
	mu     sync.Mutex
	events []events.ServerEvent
}

func (c *eventCollector) sink() session.EventSink {
	return func(ev events.ServerEvent) {
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
	}
}

func (c *eventCollector) drain() []events.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	if out == nil {
		out = []events.ServerEvent{}
	}
	return out
}
