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

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vestonlabs/voxhub/internal/audio"
	"github.com/vestonlabs/voxhub/internal/config"
	"github.com/vestonlabs/voxhub/internal/logging"
	"github.com/vestonlabs/voxhub/internal/messaging"
	"github.com/vestonlabs/voxhub/internal/server"
	"github.com/vestonlabs/voxhub/internal/storage"
	"github.com/vestonlabs/voxhub/internal/transcribe"
	"github.com/vestonlabs/voxhub/internal/voice"
	"github.com/vestonlabs/voxhub/internal/voice/platform"
)

func main() {
	if err := logging.Initialize(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.LogError(err, "Failed to load configuration")
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Server.DBPath})
	if err != nil {
		logging.LogError(err, "Failed to open database")
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	store := storage.NewSessionEventsStore(db)

	nats := messaging.NewService(cfg.NATS)
	if err := nats.Connect(); err != nil {
		logging.LogError(err, "Failed to connect to NATS")
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nats.Close()

	client := transcribe.NewClient(cfg.Transcription)
	decensor := loadDecensor(cfg.Voice.DecensorDictPath)

	loop := voice.NewLoop()
	go loop.Run()
	defer loop.Stop()

	controller := voice.NewController(voice.ControllerConfig{
		Dispatcher:    loop,
		Factory:       engineFactory(cfg, loop, nats, client, store, decensor),
		SelectEngine:  engineSelector(cfg),
		Consumer:      nats,
		Events:        store,
		Cues:          nats,
		Playback:      nats,
		SafetyTimeout: cfg.Voice.SafetyTimeout,
	})

	if _, err := nats.SubscribeResponses(controller.ResponseComplete); err != nil {
		logging.LogError(err, "Failed to subscribe to responses")
		log.Fatalf("Failed to subscribe to responses: %v", err)
	}

	srv := server.New(cfg, controller, store, nats)
	wireObservers(controller, srv.Hub())

	logging.Sugar.Infow("🚀 voxhub starting",
		"http_addr", cfg.Server.Host,
		"http_port", cfg.Server.Port,
		"db_path", cfg.Server.DBPath,
		"prefer_cloud", cfg.Voice.PreferCloud,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Sugar.Infow("🛑 Shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logging.LogError(err, "HTTP server failed")
		}
	}

	controller.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.LogError(err, "HTTP shutdown failed")
	}
}

// engineSelector maps the persisted preference to an engine kind. The
// preference alone decides: a cloud session without a credential must fail
// its start with a visible notice rather than quietly fall back to the
// local recognizer.
func engineSelector(cfg *config.Config) func() voice.EngineKind {
	return func() voice.EngineKind {
		if cfg.Voice.PreferCloud {
			return voice.EngineCloud
		}
		return voice.EngineLocal
	}
}

// engineFactory builds a fresh engine per session. Both engines read their
// microphone frames from the relay audio subject over NATS.
func engineFactory(
	cfg *config.Config,
	loop *voice.Loop,
	nats *messaging.Service,
	client *transcribe.Client,
	store *storage.SessionEventsStore,
	decensor *voice.Decensor,
) voice.EngineFactory {
	sources := func() (audio.Source, error) {
		return audio.NewNATSSource(nats.Conn(), cfg.NATS.AudioSubj, cfg.Voice.SampleRate)
	}

	// The whisper model is loaded once, on the first local session. The
	// factory only ever runs on the dispatch goroutine.
	var localTranscriber platform.Transcriber

	return func(session *voice.Session, listener voice.Listener) (voice.Engine, error) {
		switch session.Engine {
		case voice.EngineCloud:
			return voice.NewCloudEngine(voice.CloudEngineConfig{
				Dispatcher:    loop,
				Listener:      listener,
				Session:       session,
				Sources:       sources,
				Client:        client,
				Context:       store,
				SilenceWindow: cfg.Voice.CloudSilenceWindow,
				RMSThreshold:  cfg.Voice.RMSThreshold,
				MaxCapture:    cfg.Voice.MaxCapture,
				MinCapture:    cfg.Voice.MinCapture,
				FrameSize:     cfg.Voice.FrameSize,
				ContextTurns:  cfg.Transcription.ContextTurns,
			}), nil
		default:
			if localTranscriber == nil {
				transcriber, err := platform.NewWhisperTranscriber(cfg.Voice.WhisperModelPath)
				if err != nil {
					return nil, err
				}
				localTranscriber = transcriber
			}
			utterCfg := platform.DefaultUtteranceConfig()
			utterCfg.RMSThreshold = cfg.Voice.RMSThreshold
			utterCfg.FrameSize = cfg.Voice.FrameSize
			return voice.NewLocalEngine(voice.LocalEngineConfig{
				Dispatcher:    loop,
				Listener:      listener,
				Session:       session,
				Factory:       platform.NewUtteranceFactory(sources, localTranscriber, utterCfg),
				SilenceWindow: cfg.Voice.LocalSilenceWindow,
				RestartSettle: cfg.Voice.RestartSettle,
				Decensor:      decensor,
			}), nil
		}
	}
}

func loadDecensor(path string) *voice.Decensor {
	if path == "" {
		return voice.NewDecensor(nil)
	}
	overrides, err := voice.LoadDecensorDict(path)
	if err != nil {
		logging.LogError(err, "Failed to load decensor dictionary, using defaults")
		return voice.NewDecensor(nil)
	}
	return voice.NewDecensor(overrides)
}

// wireObservers pushes controller events to websocket clients.
func wireObservers(controller *voice.Controller, hub *server.Hub) {
	controller.OnStateChange(func(state voice.State, sessionID string) {
		hub.Broadcast(server.PushMessage{
			Type:      "state",
			State:     string(state),
			SessionID: sessionID,
		})
	})
	controller.OnPartial(func(sessionID, text string) {
		hub.Broadcast(server.PushMessage{
			Type:      "partial",
			SessionID: sessionID,
			Text:      text,
		})
	})
	controller.OnNotice(func(sessionID, message string) {
		hub.Broadcast(server.PushMessage{
			Type:      "notice",
			SessionID: sessionID,
			Text:      message,
		})
	})
}
