package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"interview-engine/internal/api"
	"interview-engine/internal/capture"
	"interview-engine/internal/config"
	"interview-engine/internal/interviewer"
	"interview-engine/internal/ledger"
	"interview-engine/internal/logger"
	"interview-engine/internal/metrics"
	"interview-engine/internal/scoring"
	"interview-engine/internal/session"
	"interview-engine/internal/storage"
	"interview-engine/internal/voice"
)

// app holds the services shared by every session.
type app struct {
	cfg       *config.AppConfig
	interview *config.Config
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
	store     *storage.Badger
	results   *storage.Results

	setup       session.SetupProvider
	evaluator   scoring.Evaluator
	completer   session.Completer
	synthesizer voice.Synthesizer
}

func newApp() (*app, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ No .env file, using the environment")
	}
	cfg := config.LoadAppConfig()

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	icfg, err := config.Load(cfg.InterviewFile)
	if err != nil {
		return nil, fmt.Errorf("load interview config: %w", err)
	}

	store, err := storage.NewBadger(storage.BadgerOptions{
		Dir:      cfg.Storage.Dir,
		InMemory: cfg.Storage.InMemory,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &app{
		cfg:       cfg,
		interview: icfg,
		log:       log,
		metrics:   metrics.NewMetrics(),
		store:     store,
		results:   storage.NewResults(cfg.Storage.ResultsDir),
	}

	if cfg.LocalMode() {
		if err := cfg.OpenAI.ValidateConfig(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("local mode: %w", err)
		}
		svc := interviewer.New(cfg.OpenAI, icfg, a.metrics, log)
		a.setup, a.evaluator = svc, svc
		fmt.Printf("✅ Local interviewer initialized (%s)\n", cfg.OpenAI.Model)
	} else {
		client := api.NewClient(cfg.Collaborator, a.metrics, log)
		a.setup, a.evaluator, a.completer = client, client, client
		if cfg.Collaborator.TTSPath != "" {
			a.synthesizer = client
		}
		fmt.Printf("✅ Interview backend: %s\n", cfg.Collaborator.BaseURL)
	}
	return a, nil
}

// devices are the endpoints a session talks to. Camera and Recorder may be
// nil. Synthesis turns on prompt audio from the backend.
type devices struct {
	Recognizer voice.Recognizer
	Player     voice.Player
	Camera     capture.Camera
	Recorder   capture.Recorder
	Synthesis  bool
}

func (a *app) newController(d devices, settings session.Settings) (*session.Controller, error) {
	l := ledger.New(ledger.Options{
		Store:   a.store,
		Results: a.results,
		Limits: ledger.Limits{
			MaxScreenshots:     a.interview.Capture.MaxScreenshots,
			MaxAudioRecordings: a.interview.Capture.MaxAudioRecordings,
		},
		Logger: a.log,
	})

	var capturer session.Capturer
	if d.Camera != nil || d.Recorder != nil {
		capturer = capture.NewScheduler(d.Camera, d.Recorder, l, capture.Options{
			ScreenshotInterval:   a.interview.Capture.ScreenshotInterval,
			AudioSegmentInterval: a.interview.Capture.AudioSegmentInterval,
			Logger:               a.log,
		})
	}

	var synthesizer voice.Synthesizer
	if d.Synthesis {
		synthesizer = a.synthesizer
	}
	voiceOpts := voice.Options{
		SilenceWindow:   a.interview.Voice.SilenceWindow,
		MinAnswerLength: a.interview.Voice.MinAnswerLength,
		ListenDelay:     a.interview.Voice.ListenDelay,
		AutoMode:        settings.AutoMode,
	}
	return session.New(session.Deps{
		Setup:  a.setup,
		Broker: scoring.NewBroker(a.evaluator, a.log),
		Ledger: l,
		Voice: func(hooks voice.Hooks) session.Voice {
			return voice.New(d.Recognizer, synthesizer, d.Player, voiceOpts, hooks, a.log)
		},
		Completer: a.completer,
		Capture:   capturer,
		Metrics:   a.metrics,
		Logger:    a.log,
	}, settings)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warnf("Closing storage: %v", err)
	}
	_ = a.log.Sync()
}
