package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jpalmerr/raypak/internal/poller"
)

// maxRequestBodySize bounds control request bodies.
const maxRequestBodySize = 4 << 10 // 4KB

// ErrInvalidInput marks controller errors caused by the request itself.
// They are answered with 400.
var ErrInvalidInput = errors.New("invalid input")

// Controller performs device actions on behalf of the control endpoints.
//
// Errors matching [ErrInvalidInput] map to 400, authentication failures to
// 401, and everything else to 502.
type Controller interface {
	// Refresh fetches from the device and publishes the result before returning.
	Refresh(ctx context.Context) error

	// SetTarget writes a new heater setpoint in °F.
	SetTarget(ctx context.Context, temperature float64) error

	// SetMode writes the heater operation mode ("off" or "heat").
	SetMode(ctx context.Context, mode string) error
}

type targetRequest struct {
	Temperature *float64 `json:"temperature"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRefresh refreshes synchronously and returns the resulting state.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.controller.Refresh(r.Context()); err != nil {
		s.writeControlError(w, "refresh", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Get())
}

// handleSetTarget accepts {"temperature": 82}.
func (s *Server) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req targetRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Temperature == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "temperature is required"})
		return
	}

	if err := s.controller.SetTarget(r.Context(), *req.Temperature); err != nil {
		s.writeControlError(w, "set target", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
}

// handleSetMode accepts {"mode": "heat"}.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req modeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Mode == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mode is required"})
		return
	}

	if err := s.controller.SetMode(r.Context(), req.Mode); err != nil {
		s.writeControlError(w, "set mode", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

// writeControlError maps a controller error to a status code.
func (s *Server) writeControlError(w http.ResponseWriter, action string, err error) {
	status := statusFor(err)
	if status == http.StatusBadRequest {
		s.logger.Debug("control request rejected", "action", action, "error", err.Error())
	} else {
		s.logger.Warn("control request failed", "action", action, "error", err.Error())
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	if errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	if poller.Classify(err) == poller.KindAuth {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}
