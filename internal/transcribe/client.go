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

// Package transcribe is the REST client for the remote transcription
// service. The request carries a text instruction, a block of recent
// conversation turns for domain-term accuracy, and the captured audio
// inline as base64 WAV; the transcript comes back at a fixed nested path
// in the response. Any deviation from that shape is a parse failure and
// yields an empty transcript, never an error: an empty transcription is a
// legitimate "nothing was said" outcome.
package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vestonlabs/voxhub/internal/chat"
	"github.com/vestonlabs/voxhub/internal/config"
	"github.com/vestonlabs/voxhub/internal/logging"
	"go.uber.org/zap"
)

// ErrNoCredential is returned before any network call when no API key is
// configured.
var ErrNoCredential = errors.New("transcription API key not configured")

// HTTPError is a non-success response from the transcription service. The
// upstream message is carried through for display when available.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("transcription failed (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transcription failed (HTTP %d)", e.StatusCode)
}

const (
	instruction = "Transcribe the attached audio recording exactly as spoken. " +
		"Respond with only the transcript text, no commentary. " +
		"If the audio contains no intelligible speech, respond with nothing."

	maxTurnLength = 200
)

// Client calls the remote transcription endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a transcription client from configuration.
func NewClient(cfg config.TranscriptionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ready reports whether the client holds a credential. Checked at session
// start so a missing key fails before any audio is captured or sent.
func (c *Client) Ready() error {
	if c.apiKey == "" {
		return ErrNoCredential
	}
	return nil
}

// Request/response shapes for the generateContent JSON contract.

type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Role  string        `json:"role,omitempty"`
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe submits WAV audio together with recent conversation turns and
// returns the transcript. An empty transcript with a nil error means the
// service heard nothing usable.
func (c *Client) Transcribe(ctx context.Context, wavData []byte, turns []chat.Turn) (string, error) {
	if err := c.Ready(); err != nil {
		return "", err
	}

	startTime := time.Now()

	reqBody := generateRequest{
		Contents: []requestContent{
			{
				Role: "user",
				Parts: []requestPart{
					{Text: buildInstruction(turns)},
					{InlineData: &inlineData{
						MIMEType: "audio/wav",
						Data:     base64.StdEncoding.EncodeToString(wavData),
					}},
				},
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcription request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read transcription response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(body),
		}
	}

	transcript := extractTranscript(body)

	logging.LogTranscription("cloud",
		zap.Duration("processing_time", time.Since(startTime)),
		zap.Int("audio_bytes", len(wavData)),
		zap.Int("transcript_length", len(transcript)),
	)

	return transcript, nil
}

// buildInstruction prepends the recent conversation block to the fixed
// transcription instruction. Turns arrive most recent first and long turns
// are truncated so the context block stays bounded.
func buildInstruction(turns []chat.Turn) string {
	if len(turns) == 0 {
		return instruction
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nRecent conversation, most recent first, for names and domain terms:\n")
	for _, turn := range turns {
		if turn.Assistant != "" {
			b.WriteString("Assistant: ")
			b.WriteString(truncate(turn.Assistant, maxTurnLength))
			b.WriteString("\n")
		}
		if turn.User != "" {
			b.WriteString("User: ")
			b.WriteString(truncate(turn.User, maxTurnLength))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// truncate cuts s to at most max bytes without splitting a rune, so the
// JSON payload stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// extractTranscript pulls the transcript from its fixed nested path. Every
// deviation from the expected shape falls back to an empty transcript.
func extractTranscript(body []byte) string {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if len(parsed.Candidates) == 0 {
		return ""
	}
	parts := parsed.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace(parts[0].Text)
}

// upstreamMessage extracts the error message from a failure body, if the
// body has the documented error shape.
func upstreamMessage(body []byte) string {
	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Error.Message
}
