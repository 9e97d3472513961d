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

// Package messaging connects the voice pipeline to the rest of the system
// over NATS: committed utterances go out, response completions come back,
// and feedback cues and playback control reach the relays that own the
// speakers.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/vestonlabs/voxhub/internal/config"
	"github.com/vestonlabs/voxhub/internal/logging"
	"github.com/vestonlabs/voxhub/internal/voice"
)

// UtteranceEvent is a committed utterance published for the conversational
// backend.
type UtteranceEvent struct {
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
	Timestamp int64  `json:"timestamp"`
}

// ResponseEvent is the backend's completion handshake for one session.
type ResponseEvent struct {
	SessionID    string `json:"session_id"`
	ResponseText string `json:"response_text"`
	Timestamp    int64  `json:"timestamp"`
}

// CueEvent is an audible feedback cue for whatever relay owns the speaker.
type CueEvent struct {
	Cue       string `json:"cue"`
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
}

// PlaybackControl tells relays to do something with their output channel.
type PlaybackControl struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

// Service wraps one NATS connection and the pipeline's subjects. It
// implements chat.Consumer, voice.CueEmitter and voice.Playback so it can
// be wired straight into the controller.
type Service struct {
	conn *nats.Conn
	cfg  config.NATSConfig
}

// NewService creates a NATS service. Connect must be called before use.
func NewService(cfg config.NATSConfig) *Service {
	return &Service{cfg: cfg}
}

// Connect establishes the connection with reconnect handling.
func (s *Service) Connect() error {
	opts := []nats.Option{
		nats.Name("voxhub"),
		nats.ReconnectWait(s.cfg.ReconnectWait),
		nats.MaxReconnects(s.cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent("", "reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent("", "closed")
		}),
	}

	conn, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	s.conn = conn
	logging.LogNATSEvent("", "connected",
		zap.String("url", conn.ConnectedUrl()))
	return nil
}

// Deliver implements chat.Consumer by publishing the utterance for the
// conversational backend.
func (s *Service) Deliver(sessionID, utterance string) error {
	if s.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	event := UtteranceEvent{
		SessionID: sessionID,
		Utterance: utterance,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal utterance event: %w", err)
	}
	if err := s.conn.Publish(s.cfg.UtteranceSubj, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.cfg.UtteranceSubj, err)
	}

	logging.LogNATSEvent(s.cfg.UtteranceSubj, "published",
		zap.String("session_id", sessionID))
	return nil
}

// SubscribeResponses routes backend completion events to the handler. The
// handler runs on a NATS delivery goroutine.
func (s *Service) SubscribeResponses(handler func(sessionID, responseText string)) (*nats.Subscription, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}

	return s.conn.Subscribe(s.cfg.ResponseSubj, func(msg *nats.Msg) {
		var event ResponseEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logging.LogError(err, "Failed to unmarshal response event",
				zap.String("subject", msg.Subject))
			return
		}
		logging.LogNATSEvent(s.cfg.ResponseSubj, "received",
			zap.String("session_id", event.SessionID))
		handler(event.SessionID, event.ResponseText)
	})
}

// Emit implements voice.CueEmitter. Cue delivery is best-effort; failures
// are logged and swallowed so feedback can never stall the pipeline.
func (s *Service) Emit(cue voice.Cue, sessionID string) {
	if s.conn == nil {
		return
	}

	event := CueEvent{
		Cue:       string(cue),
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		logging.LogError(err, "Failed to marshal cue event")
		return
	}
	if err := s.conn.Publish(s.cfg.CueSubj, data); err != nil {
		logging.LogError(err, "Failed to publish cue",
			zap.String("cue", string(cue)))
	}
}

// Stop implements voice.Playback by telling relays to silence their output
// before capture begins. Best-effort.
func (s *Service) Stop() {
	if s.conn == nil {
		return
	}

	control := PlaybackControl{
		Action:    "stop",
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(control)
	if err != nil {
		logging.LogError(err, "Failed to marshal playback control")
		return
	}
	if err := s.conn.Publish(s.cfg.PlaybackSubj, data); err != nil {
		logging.LogError(err, "Failed to publish playback stop")
	}
}

// Conn exposes the underlying connection for collaborators that do their
// own subscribing, such as the NATS audio source.
func (s *Service) Conn() *nats.Conn {
	return s.conn
}

// IsConnected reports whether the connection is up.
func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Stats returns connection statistics.
func (s *Service) Stats() nats.Statistics {
	if s.conn != nil {
		return s.conn.Stats()
	}
	return nats.Statistics{}
}

// Close drains and closes the connection.
func (s *Service) Close() {
	if s.conn != nil {
		s.conn.Close()
		logging.LogNATSEvent("", "connection closed")
	}
}
