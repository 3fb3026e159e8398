package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/foxseedlab/coachcal/internal/boundary"
)

const (
	readHeaderTimeout = 10 * time.Second
	maxBodyBytes      = 1 << 20
)

type Service interface {
	ListSessions(ctx context.Context, req boundary.RangeRequest) boundary.SessionsResponse
	SendInvite(ctx context.Context, req boundary.SessionRequest) boundary.RemoteEventResponse
	SendAll(ctx context.Context, req boundary.RangeRequest) boundary.BatchResponse
	ListEvents(ctx context.Context, req boundary.RangeRequest) boundary.EventsResponse
	Upsert(ctx context.Context, req boundary.UpsertRequest) boundary.RemoteEventResponse
	Delete(ctx context.Context, req boundary.SessionRequest) boundary.DeleteResponse
	Disconnect(ctx context.Context) boundary.Envelope
	ListSentHistory(ctx context.Context, req boundary.RangeRequest) boundary.HistoryResponse
	ExportCalendar(ctx context.Context, req boundary.RangeRequest) boundary.FeedResponse
}

type Server struct {
	svc Service
	srv *http.Server
}

func NewServer(addr string, svc Service) *Server {
	s := &Server{svc: svc}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/invites/{id}", s.handleSendInvite)
	mux.HandleFunc("POST /api/invites", s.handleSendAll)
	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("PUT /api/sessions/{id}/remote", s.handleUpsert)
	mux.HandleFunc("DELETE /api/sessions/{id}/remote", s.handleDelete)
	mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/calendar.ics", s.handleCalendar)
	return mux
}

func (s *Server) ListenAndServe() error {
	slog.Info("http api listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func rangeFromQuery(r *http.Request) boundary.RangeRequest {
	q := r.URL.Query()
	return boundary.RangeRequest{Start: q.Get("start"), End: q.Get("end")}
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, boundary.Envelope{OK: false, Error: "invalid request body: " + err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, boundary.Envelope{OK: true})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListSessions(r.Context(), rangeFromQuery(r)))
}

func (s *Server) handleSendInvite(w http.ResponseWriter, r *http.Request) {
	req := boundary.SessionRequest{SessionID: r.PathValue("id")}
	writeJSON(w, http.StatusOK, s.svc.SendInvite(r.Context(), req))
}

func (s *Server) handleSendAll(w http.ResponseWriter, r *http.Request) {
	var req boundary.RangeRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.SendAll(r.Context(), req))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListEvents(r.Context(), rangeFromQuery(r)))
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IncludeAttendee bool `json:"include_attendee"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	req := boundary.UpsertRequest{SessionID: r.PathValue("id"), IncludeAttendee: body.IncludeAttendee}
	writeJSON(w, http.StatusOK, s.svc.Upsert(r.Context(), req))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	req := boundary.SessionRequest{SessionID: r.PathValue("id")}
	writeJSON(w, http.StatusOK, s.svc.Delete(r.Context(), req))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Disconnect(r.Context()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListSentHistory(r.Context(), rangeFromQuery(r)))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	res := s.svc.ExportCalendar(r.Context(), rangeFromQuery(r))
	if !res.OK {
		writeJSON(w, http.StatusBadRequest, res.Envelope)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, res.Calendar); err != nil {
		slog.Error("failed to write calendar feed", "error", err)
	}
}
