package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proctorhub/backend/internal/health"
	"github.com/proctorhub/backend/internal/metrics"
	"github.com/proctorhub/backend/internal/proctor"
	"github.com/proctorhub/backend/internal/report"
	"github.com/proctorhub/backend/internal/session"
	"github.com/proctorhub/backend/internal/store"
)

type Server struct {
	service        *proctor.Service
	hub            *Hub
	checker        *health.Checker
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
}

func NewServer(service *proctor.Service, hub *Hub, checker *health.Checker, allowedOrigins []string, authToken string) *Server {
	s := &Server{
		service:        service,
		hub:            hub,
		checker:        checker,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      authToken,
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)
	mux.HandleFunc("/api/reports", s.handleReports)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/events/", s.handleEventRoutes)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c, err := s.hub.AddClient(conn)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
		conn.Close()
		return
	}
	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	metrics.WSClients.Inc()

	if id := r.URL.Query().Get("session"); id != "" {
		s.subscribe(c, id)
	}

	go func() {
		defer func() {
			s.hub.RemoveClient(c)
			metrics.WSClients.Dec()
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.handleCommand(c, data)
		}
	}()
}

func (s *Server) handleCommand(c *client, data []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.reply(c, WSMessage{Type: MsgError, Payload: ErrorPayload{Message: "invalid message"}})
		return
	}

	switch cmd.Action {
	case "subscribe":
		if cmd.SessionID == "" {
			s.reply(c, WSMessage{Type: MsgError, Payload: ErrorPayload{Message: "sessionId is required"}})
			return
		}
		s.subscribe(c, cmd.SessionID)
	case "unsubscribe":
		s.hub.Unsubscribe(c, cmd.SessionID)
		s.reply(c, WSMessage{Type: MsgUnsubscribed, Payload: SubscriptionPayload{SessionID: cmd.SessionID}})
	default:
		s.reply(c, WSMessage{Type: MsgError, Payload: ErrorPayload{Message: fmt.Sprintf("unknown action %q", cmd.Action)}})
	}
}

func (s *Server) subscribe(c *client, sessionID string) {
	s.hub.Subscribe(c, sessionID)
	s.reply(c, WSMessage{Type: MsgSubscribed, Payload: SubscriptionPayload{SessionID: sessionID}})
}

func (s *Server) reply(c *client, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.handleStartSession(w, r)
	case http.MethodGet:
		s.handleListSessions(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CandidateName   string `json:"candidateName"`
		InterviewerName string `json:"interviewerName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := s.service.StartSession(r.Context(), body.CandidateName, body.InterviewerName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{
		Candidate: q.Get("candidate"),
		Page:      intParam(q.Get("page")),
		Limit:     intParam(q.Get("limit")),
	}
	if name := q.Get("status"); name != "" {
		status, ok := session.ParseStatus(name)
		if !ok {
			http.Error(w, "unknown status", http.StatusBadRequest)
			return
		}
		filter.Status = &status
	}

	sessions, total, err := s.service.ListSessions(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    total,
	})
}

// handleSessionRoutes dispatches /api/sessions/{id} and its
// sub-resources.
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)

	sessionID, err := url.PathUnescape(parts[0])
	if err != nil || sessionID == "" {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleGetSession(w, r, sessionID)
		return
	}

	switch parts[1] {
	case "stop":
		s.handleCloseSession(w, r, sessionID, s.service.StopSession)
	case "terminate":
		s.handleCloseSession(w, r, sessionID, s.service.TerminateSession)
	case "scores":
		s.handleScores(w, r, sessionID)
	case "events":
		s.handleSessionEvents(w, r, sessionID)
	case "stats":
		s.handleEventStats(w, r, sessionID)
	case "report":
		s.handleReport(w, r, sessionID)
	case "report.csv":
		s.handleReportCSV(w, r, sessionID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, events, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": sess,
		"events":  events,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request, sessionID string, close func(ctx context.Context, id string) (*session.Session, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := close(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		FocusScore     *int `json:"focusScore"`
		IntegrityScore *int `json:"integrityScore"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := s.service.SetScores(r.Context(), sessionID, body.FocusScore, body.IntegrityScore)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := store.EventFilter{
		Page:  intParam(q.Get("page")),
		Limit: intParam(q.Get("limit")),
	}
	if name := q.Get("type"); name != "" {
		kind, ok := session.ParseKind(name)
		if !ok {
			http.Error(w, "unknown event type", http.StatusBadRequest)
			return
		}
		filter.Kind = &kind
	}
	if name := q.Get("severity"); name != "" {
		severity, ok := session.ParseSeverity(name)
		if !ok {
			http.Error(w, "unknown severity", http.StatusBadRequest)
			return
		}
		filter.Severity = &severity
	}

	events, total, err := s.service.SessionEvents(r.Context(), sessionID, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.service.EventStats(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, events, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report.Build(sess, events, s.service.Now()))
}

func (s *Server) handleReportCSV(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, events, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "session-"+sessionID+"-events.csv"))
	if err := report.WriteCSV(w, events); err != nil {
		log.Printf("csv export error: %v", err)
	}
}

// handleReports lists per-session score summaries, newest first.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := store.ListFilter{
		Candidate: q.Get("candidate"),
		Page:      intParam(q.Get("page")),
		Limit:     intParam(q.Get("limit")),
	}
	if name := q.Get("status"); name != "" {
		status, ok := session.ParseStatus(name)
		if !ok {
			http.Error(w, "unknown status", http.StatusBadRequest)
			return
		}
		filter.Status = &status
	}

	sessions, total, err := s.service.ListSessions(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	summaries := make([]report.Summary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, report.Summarize(sess))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": summaries,
		"total":   total,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		SessionID   string               `json:"sessionId"`
		Type        string               `json:"type"`
		Severity    string               `json:"severity"`
		Duration    float64              `json:"duration"`
		Confidence  float64              `json:"confidence"`
		Description string               `json:"description"`
		Coordinates *session.Coordinates `json:"coordinates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev, err := s.service.LogEvent(r.Context(), proctor.EventInput{
		SessionID:   body.SessionID,
		Kind:        body.Type,
		Severity:    body.Severity,
		Duration:    body.Duration,
		Confidence:  body.Confidence,
		Description: body.Description,
		Coordinates: body.Coordinates,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ev)
}

// handleEventRoutes dispatches /api/events/{id}/resolve.
func (s *Server) handleEventRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/events/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] != "resolve" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventID, err := url.PathUnescape(parts[0])
	if err != nil || eventID == "" {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	ev, err := s.service.ResolveEvent(r.Context(), eventID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.checker.Check())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-ProctorHub-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func intParam(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, securityHeaders(mux))
}
