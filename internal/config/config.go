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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Voxhub voice pipeline
type Config struct {
	Server        ServerConfig
	Voice         VoiceConfig
	Transcription TranscriptionConfig
	Logging       LoggingConfig
	NATS          NATSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DBPath       string
}

// VoiceConfig holds voice pipeline configuration. Silence windows differ per
// engine: the local recognizer gets OS-level end-of-speech assist, so its
// window can be shorter than the cloud engine's raw-RMS detection.
type VoiceConfig struct {
	PreferCloud        bool          // Engine selection, read once per session
	LocalSilenceWindow time.Duration // Silence before the local engine commits
	CloudSilenceWindow time.Duration // Silence before the cloud engine stops capture
	RestartSettle      time.Duration // Delay between recognizer destroy and recreate
	SafetyTimeout      time.Duration // Last-resort liveness backstop
	SampleRate         int           // Capture sample rate in Hz
	FrameSize          int           // Samples per capture frame
	RMSThreshold       float64       // Normalized RMS level counted as speech
	MaxCapture         time.Duration // Hard cap on one cloud recording
	MinCapture         time.Duration // Below this, a capture is treated as silence
	DecensorDictPath   string        // Optional TOML dictionary override
	WhisperModelPath   string        // GGML model for the local engine
}

// TranscriptionConfig holds remote transcription service configuration
type TranscriptionConfig struct {
	Endpoint     string        // Base URL of the generateContent-style endpoint
	Model        string        // Model identifier appended to the endpoint
	APIKey       string        // Credential; absence is a terminal session error
	Timeout      time.Duration // Request timeout
	ContextTurns int           // Recent conversation turns injected per request
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL             string
	UtteranceSubj   string
	ResponseSubj    string
	CueSubj         string
	AudioSubj       string
	PlaybackSubj    string
	MaxReconnect    int
	ReconnectWait   time.Duration
	ResponseTimeout time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("VOXHUB_HOST", "0.0.0.0"),
			Port:         getEnvInt("VOXHUB_PORT", 8090),
			ReadTimeout:  getEnvDuration("VOXHUB_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("VOXHUB_WRITE_TIMEOUT", 30*time.Second),
			DBPath:       getEnvString("VOXHUB_DB_PATH", "./data/voxhub.db"),
		},
		Voice: VoiceConfig{
			PreferCloud:        getEnvBool("VOICE_PREFER_CLOUD", false),
			LocalSilenceWindow: getEnvDuration("VOICE_LOCAL_SILENCE_WINDOW", 2*time.Second),
			CloudSilenceWindow: getEnvDuration("VOICE_CLOUD_SILENCE_WINDOW", 3500*time.Millisecond),
			RestartSettle:      getEnvDuration("VOICE_RESTART_SETTLE", 150*time.Millisecond),
			SafetyTimeout:      getEnvDuration("VOICE_SAFETY_TIMEOUT", 5*time.Minute),
			SampleRate:         getEnvInt("VOICE_SAMPLE_RATE", 16000),
			FrameSize:          getEnvInt("VOICE_FRAME_SIZE", 1024),
			RMSThreshold:       getEnvFloat64("VOICE_RMS_THRESHOLD", 0.012),
			MaxCapture:         getEnvDuration("VOICE_MAX_CAPTURE", 60*time.Second),
			MinCapture:         getEnvDuration("VOICE_MIN_CAPTURE", 500*time.Millisecond),
			DecensorDictPath:   getEnvString("VOICE_DECENSOR_DICT", ""),
			WhisperModelPath:   getEnvString("VOICE_WHISPER_MODEL", "./models/ggml-base.en.bin"),
		},
		Transcription: TranscriptionConfig{
			Endpoint:     getEnvString("TRANSCRIBE_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
			Model:        getEnvString("TRANSCRIBE_MODEL", "gemini-2.0-flash"),
			APIKey:       getEnvString("TRANSCRIBE_API_KEY", ""),
			Timeout:      getEnvDuration("TRANSCRIBE_TIMEOUT", 30*time.Second),
			ContextTurns: getEnvInt("TRANSCRIBE_CONTEXT_TURNS", 6),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		NATS: NATSConfig{
			URL:             getEnvString("NATS_URL", "nats://localhost:4222"),
			UtteranceSubj:   getEnvString("NATS_UTTERANCE_SUBJECT", "voxhub.utterances"),
			ResponseSubj:    getEnvString("NATS_RESPONSE_SUBJECT", "voxhub.responses"),
			CueSubj:         getEnvString("NATS_CUE_SUBJECT", "voxhub.cues"),
			AudioSubj:       getEnvString("NATS_AUDIO_SUBJECT", "voxhub.audio.frames"),
			PlaybackSubj:    getEnvString("NATS_PLAYBACK_SUBJECT", "voxhub.playback"),
			MaxReconnect:    getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait:   getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
			ResponseTimeout: getEnvDuration("NATS_RESPONSE_TIMEOUT", 2*time.Minute),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Voice.LocalSilenceWindow <= 0 {
		return fmt.Errorf("local silence window must be positive: %v", c.Voice.LocalSilenceWindow)
	}

	if c.Voice.CloudSilenceWindow <= 0 {
		return fmt.Errorf("cloud silence window must be positive: %v", c.Voice.CloudSilenceWindow)
	}

	if c.Voice.SafetyTimeout < time.Minute {
		return fmt.Errorf("safety timeout must be at least one minute: %v", c.Voice.SafetyTimeout)
	}

	if c.Voice.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", c.Voice.SampleRate)
	}

	if c.Voice.FrameSize <= 0 {
		return fmt.Errorf("frame size must be positive: %d", c.Voice.FrameSize)
	}

	if c.Voice.RMSThreshold <= 0 || c.Voice.RMSThreshold >= 1 {
		return fmt.Errorf("RMS threshold must be in (0, 1): %f", c.Voice.RMSThreshold)
	}

	if c.Voice.MinCapture >= c.Voice.MaxCapture {
		return fmt.Errorf("min capture %v must be below max capture %v",
			c.Voice.MinCapture, c.Voice.MaxCapture)
	}

	if c.Transcription.Endpoint == "" {
		return fmt.Errorf("transcription endpoint must be provided")
	}

	if c.Transcription.ContextTurns < 0 {
		return fmt.Errorf("context turns cannot be negative: %d", c.Transcription.ContextTurns)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
