package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v57/github"
)

// Response is the JSON body returned for accepted push events.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var (
	responseTriggered = Response{Status: "success", Message: "Update triggered successfully"}
	responseIgnored   = Response{Status: "ignored", Message: "Not main branch"}
)

// HandleWebhook handles every request the listener receives.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	event, err := s.readPushEvent(w, r)
	if err != nil {
		s.respondError(w, logger, err)
		return
	}

	if event.Ref != s.Config.TargetRef() {
		logger.Info("Ignoring push", "ref", event.Ref)
		s.respondJSON(w, logger, http.StatusOK, responseIgnored)
		return
	}

	trigger, err := event.Trigger(github.DeliveryID(r))
	if err != nil {
		s.respondError(w, logger, err)
		return
	}

	logger.Info(fmt.Sprintf("Received push to %s branch", s.Config.Branch),
		"pusher", trigger.Pusher,
		"commits", trigger.Commits)

	s.Updater.Dispatch(trigger)

	s.respondJSON(w, logger, http.StatusOK, responseTriggered)
}

// readPushEvent applies the method, size and signature checks and decodes
// the body.
func (s *Server) readPushEvent(w http.ResponseWriter, r *http.Request) (*PushEvent, error) {
	if r.Method != http.MethodPost {
		return nil, ErrMethodNotAllowed
	}

	reader := r.Body
	if s.Config.MaxPayloadBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, s.Config.MaxPayloadBytes)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrMalformedPayload, err)
	}

	if s.Config.SignatureRequired() {
		if !VerifySignature(body, r.Header.Get(SignatureHeader), s.Config.Secret) {
			return nil, ErrInvalidSignature
		}
	}

	return ParsePushEvent(body)
}

// respondError maps a gateway error to its status code and plain-text body.
func (s *Server) respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrMethodNotAllowed):
		respondText(w, http.StatusMethodNotAllowed)
	case errors.Is(err, ErrInvalidSignature):
		logger.Warn("Invalid webhook signature")
		respondText(w, http.StatusUnauthorized)
	case errors.Is(err, ErrPayloadTooLarge):
		logger.Warn("Rejected oversized payload", "error", err)
		respondText(w, http.StatusRequestEntityTooLarge)
	default:
		logger.Error("Error processing webhook", "error", err)
		respondText(w, http.StatusBadRequest)
	}
}

// requestLogger annotates the logger with GitHub's delivery id and event
// type when the request carries them.
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	logger := s.Logger
	if id := github.DeliveryID(r); id != "" {
		logger = logger.With("delivery", id)
	}
	if event := github.WebHookType(r); event != "" {
		logger = logger.With("event", event)
	}
	return logger
}

// respondText writes the standard status text without a trailing newline.
func respondText(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(statusCode)
	_, _ = io.WriteString(w, http.StatusText(statusCode))
}

// respondJSON sends a compact JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, logger *slog.Logger, statusCode int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
		respondText(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}
