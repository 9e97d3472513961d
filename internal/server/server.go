/*
 * This file is part of Voxhub (https://github.com/vestonlabs/voxhub).
 * Copyright (C) 2026 Veston Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package server exposes the pipeline over HTTP: the toggle control, state
// and session queries, a health endpoint, and a websocket push channel for
// live state and partial transcripts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vestonlabs/voxhub/internal/config"
	"github.com/vestonlabs/voxhub/internal/events"
	"github.com/vestonlabs/voxhub/internal/logging"
	"github.com/vestonlabs/voxhub/internal/storage"
	"github.com/vestonlabs/voxhub/internal/voice"
)

// VoiceControl is the slice of the controller the HTTP surface needs.
type VoiceControl interface {
	Toggle()
	Cancel()
	State() voice.State
}

// SessionStore is the slice of the persistence layer the HTTP surface
// needs.
type SessionStore interface {
	GetByUUID(uuid string) (*events.SessionEvent, error)
	List(limit, offset int) ([]*events.SessionEvent, error)
	Count() (int64, error)
}

// HealthChecker reports whether the messaging link is up.
type HealthChecker interface {
	IsConnected() bool
}

// Server is the HTTP front of the hub.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	httpServer *http.Server
	control    VoiceControl
	store      SessionStore
	health     HealthChecker
	hub        *Hub
}

// New builds the server and its routes. store and health may be nil; the
// affected endpoints degrade rather than disappear.
func New(cfg *config.Config, control VoiceControl, store SessionStore, health HealthChecker) *Server {
	s := &Server{
		cfg:     cfg,
		control: control,
		store:   store,
		health:  health,
		hub:     NewHub(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/voice/toggle", s.handleToggle)
		r.Post("/voice/cancel", s.handleCancel)
		r.Get("/voice/state", s.handleState)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{uuid}", s.handleGetSession)
	})
	r.Get("/ws", s.hub.ServeHTTP)

	s.router = r
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Hub exposes the websocket hub so the controller's observers can be wired
// to it.
func (s *Server) Hub() *Hub { return s.hub }

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	logging.Sugar.Infow("🌐 HTTP server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	natsConnected := false
	if s.health != nil {
		natsConnected = s.health.IsConnected()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"state":          string(s.control.State()),
		"nats_connected": natsConnected,
		"timestamp":      time.Now().UnixMilli(),
	})
}

// handleToggle is deliberately fire-and-forget: the transition happens on
// the dispatch goroutine, so the response reports acceptance, not the
// resulting state. Clients watch /ws for the transition.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.control.Toggle()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"state":    string(s.control.State()),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.control.Cancel()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state": string(s.control.State()),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "session store not available")
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.store.List(limit, offset)
	if err != nil {
		logging.LogError(err, "Failed to list session events")
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	total, err := s.store.Count()
	if err != nil {
		logging.LogError(err, "Failed to count session events")
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "session store not available")
		return
	}

	uuid := chi.URLParam(r, "uuid")
	event, err := s.store.GetByUUID(uuid)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		logging.LogError(err, "Failed to load session event",
			zap.String("uuid", uuid))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogError(err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
