package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rescp17/transferkit/internal/app"
	"github.com/rescp17/transferkit/pkg/library"
	"github.com/rescp17/transferkit/pkg/transfer"
)

const maxRequestBody = 64 * 1024

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	filter, err := transfer.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, transfer.DescribeAll(s.manager.Filter(filter)))
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	if s.creator == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "transfers cannot be created")
		return
	}
	var req app.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}

	t, err := s.creator.Add(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, transfer.Describe(t))
	case errors.Is(err, app.ErrUnsupportedURL):
		writeError(w, http.StatusBadRequest, "unsupported_url", err.Error())
	case errors.Is(err, transfer.ErrTransferAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	default:
		s.logger.Error("Failed to create transfer", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", err.Error())
	}
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	t, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", transfer.ErrTransferNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, transfer.Describe(t))
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	deleteData := false
	if raw := r.URL.Query().Get("delete_data"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "delete_data must be a boolean")
			return
		}
		deleteData = v
	}
	if err := s.manager.Cancel(r.PathValue("id"), deleteData); err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type countPayload struct {
	Count int `json:"count"`
}

func (s *Server) handleClearComplete(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, countPayload{Count: s.manager.ClearComplete()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.changePause(w, r.PathValue("id"), s.manager.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.changePause(w, r.PathValue("id"), s.manager.Resume)
}

func (s *Server) changePause(w http.ResponseWriter, id string, apply func(string) error) {
	err := apply(id)
	switch {
	case err == nil:
		t, ok := s.manager.Get(id)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, transfer.Describe(t))
	case errors.Is(err, transfer.ErrTransferNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, transfer.ErrNotPausable):
		writeError(w, http.StatusUnprocessableEntity, "not_pausable", err.Error())
	default:
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	}
}

func (s *Server) handlePauseAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, countPayload{Count: s.manager.PauseAll()})
}

func (s *Server) handleResumeAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, countPayload{Count: s.manager.ResumeAll()})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Summary())
}

func (s *Server) handleClearReview(w http.ResponseWriter, _ *http.Request) {
	s.manager.ClearDownloadsToReview()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLibrary(w http.ResponseWriter, _ *http.Request) {
	entries := []library.Entry{}
	if s.library != nil {
		entries = s.library.Entries()
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", "error", err)
		return
	}
	client := &wsClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()

	// new clients get the current picture right away
	s.hub.sendTo(client, "transfers", transfer.DescribeAll(s.manager.Filter(transfer.FilterAll)))
}
