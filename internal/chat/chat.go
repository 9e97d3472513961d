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

// Package chat defines the contract between the voice pipeline and the
// conversational backend. The backend itself is an external collaborator;
// only the handshake lives here.
package chat

// Turn is one user/assistant exchange. Sequences are ordered most recent
// first when used as transcription context.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Consumer receives a final utterance for a response cycle. Implementations
// must eventually signal completion back to the controller — that handshake
// is what drives the pipeline out of its processing state.
type Consumer interface {
	// Deliver hands the committed utterance downstream. A returned error
	// means the response cycle never started.
	Deliver(sessionID, utterance string) error
}

// ContextProvider supplies recent conversation turns for context-aware
// transcription.
type ContextProvider interface {
	RecentTurns(limit int) ([]Turn, error)
}
