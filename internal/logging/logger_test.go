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

package logging

import (
	"errors"
	"os"
	"testing"
)

func TestInitialize(t *testing.T) {
	originalLevel := os.Getenv("LOG_LEVEL")
	originalFormat := os.Getenv("LOG_FORMAT")
	defer func() {
		_ = os.Setenv("LOG_LEVEL", originalLevel)
		_ = os.Setenv("LOG_FORMAT", originalFormat)
	}()

	tests := []struct {
		name      string
		logLevel  string
		logFormat string
		wantErr   bool
	}{
		{
			name:      "Default values",
			logLevel:  "",
			logFormat: "",
			wantErr:   false,
		},
		{
			name:      "Debug level JSON format",
			logLevel:  "debug",
			logFormat: "json",
			wantErr:   false,
		},
		{
			name:      "Warn level console format",
			logLevel:  "warn",
			logFormat: "console",
			wantErr:   false,
		},
		{
			name:      "Invalid level defaults to info",
			logLevel:  "not-a-level",
			logFormat: "console",
			wantErr:   false,
		},
		{
			name:      "Invalid format defaults to console",
			logLevel:  "info",
			logFormat: "invalid",
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = os.Setenv("LOG_LEVEL", tt.logLevel)
			_ = os.Setenv("LOG_FORMAT", tt.logFormat)

			err := Initialize()
			if (err != nil) != tt.wantErr {
				t.Errorf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
			}

			if Logger == nil {
				t.Error("Logger should not be nil after Initialize()")
			}
			if Sugar == nil {
				t.Error("Sugar should not be nil after Initialize()")
			}

			Close()
		})
	}
}

func TestHelpersWithNilLogger(t *testing.T) {
	// All helpers must be safe before Initialize has been called.
	saved := Logger
	savedSugar := Sugar
	Logger = nil
	Sugar = nil
	defer func() {
		Logger = saved
		Sugar = savedSugar
	}()

	LogStateTransition("idle", "listening")
	LogSessionEvent("abc", "local", "test message")
	LogForcedRecovery("processing")
	LogTranscription("cloud")
	LogNATSEvent("voxhub.cues", "publish")
	LogDatabaseOperation("insert", "session_events")
	LogError(errors.New("boom"), "test error")
	LogWarn("test warning")
}

func TestHelpersAfterInitialize(t *testing.T) {
	if err := InitializeWithConfig(LogConfig{Level: "debug", Format: "console"}); err != nil {
		t.Fatalf("InitializeWithConfig() error = %v", err)
	}
	defer Close()

	LogStateTransition("listening", "processing")
	LogSessionEvent("abc", "cloud", "session committed")
	LogForcedRecovery("processing")
	LogTranscription("local")
	LogError(errors.New("boom"), "engine failed")
}
