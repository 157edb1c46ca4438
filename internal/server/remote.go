package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"interview-engine/internal/voice"
)

var (
	errNoClient       = errors.New("no browser connected to the session")
	errClientGone     = errors.New("client disconnected")
	errHubClosed      = errors.New("session closed")
	errCaptureTimeout = errors.New("browser did not deliver the capture in time")
)

// Browser message types.
const (
	msgTranscript       = "transcript"
	msgRecognitionError = "recognition_error"
	msgRecognitionEnd   = "recognition_end"
	msgPlaybackDone     = "playback_done"

	msgListenRequested  = "listen_requested"
	msgListenStopped    = "listen_stopped"
	msgPlay             = "play"
	msgCaptureRequested = "capture_requested"
)

type RemoteOptions struct {
	PlaybackTimeout time.Duration
	CaptureTimeout  time.Duration
	Logger          *zap.SugaredLogger
}

type recognition struct {
	events chan voice.RecognitionEvent
	closed bool
}

// Remote stands in for the microphone, speaker, camera and audio recorder
// of a browser connected over the session websocket. Speech recognition
// runs in the browser and arrives as transcript messages; screenshots and
// audio segments are requested over the socket and uploaded over HTTP.
type Remote struct {
	hub  *Hub
	opts RemoteOptions
	log  *zap.SugaredLogger

	mu          sync.Mutex
	rec         *recognition
	playback    chan struct{}
	screenshots chan []byte
	audio       chan []byte
}

func NewRemote(opts RemoteOptions) *Remote {
	if opts.PlaybackTimeout <= 0 {
		opts.PlaybackTimeout = 30 * time.Second
	}
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Remote{
		opts:        opts,
		log:         log,
		screenshots: make(chan []byte, 1),
		audio:       make(chan []byte, 1),
	}
	r.hub = NewHub(r.handle, log)
	return r
}

func (r *Remote) Hub() *Hub { return r.hub }

// Recognize asks the browser to start recognition and streams its
// transcript messages until recognition_end or ctx is cancelled.
func (r *Remote) Recognize(ctx context.Context) (<-chan voice.RecognitionEvent, error) {
	if r.hub.Len() == 0 {
		return nil, errNoClient
	}

	rec := &recognition{events: make(chan voice.RecognitionEvent, 32)}
	r.mu.Lock()
	if r.rec != nil {
		r.closeLocked(r.rec)
	}
	r.rec = rec
	r.mu.Unlock()

	r.hub.Broadcast(msgListenRequested, nil)
	context.AfterFunc(ctx, func() {
		r.mu.Lock()
		stopped := !rec.closed
		r.closeLocked(rec)
		r.mu.Unlock()
		if stopped {
			r.hub.Broadcast(msgListenStopped, nil)
		}
	})
	return rec.events, nil
}

func (r *Remote) closeLocked(rec *recognition) {
	if r.rec == rec {
		r.rec = nil
	}
	if !rec.closed {
		rec.closed = true
		close(rec.events)
	}
}

// Play sends the prompt to the browser and waits for playback_done. A
// browser that never answers is given PlaybackTimeout.
func (r *Remote) Play(ctx context.Context, text string, audio []byte) error {
	if r.hub.Len() == 0 {
		r.log.Debugf("No client to play prompt to, skipping")
		return nil
	}

	done := make(chan struct{}, 1)
	r.mu.Lock()
	r.playback = done
	r.mu.Unlock()

	data := map[string]any{"text": text}
	if len(audio) > 0 {
		data["audio_base64"] = base64.StdEncoding.EncodeToString(audio)
		data["format"] = "mp3"
	}
	r.hub.Broadcast(msgPlay, data)

	timer := time.NewTimer(r.opts.PlaybackTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	case <-timer.C:
		r.log.Warnf("No playback_done within %v, continuing", r.opts.PlaybackTimeout)
		return nil
	}
}

// Snapshot requests a screenshot from the browser.
func (r *Remote) Snapshot(ctx context.Context) ([]byte, error) {
	return r.request(ctx, "screenshot", r.screenshots)
}

// Flush requests the audio recorded since the previous request.
func (r *Remote) Flush(ctx context.Context) ([]byte, error) {
	return r.request(ctx, "audio", r.audio)
}

func (r *Remote) request(ctx context.Context, kind string, uploads chan []byte) ([]byte, error) {
	if r.hub.Len() == 0 {
		return nil, errNoClient
	}
	// a late upload from an earlier request is stale
	select {
	case <-uploads:
	default:
	}

	r.hub.Broadcast(msgCaptureRequested, map[string]string{"kind": kind})

	timer := time.NewTimer(r.opts.CaptureTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-uploads:
		return payload, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w", kind, errCaptureTimeout)
	}
}

// DeliverScreenshot hands an uploaded screenshot to a pending request.
func (r *Remote) DeliverScreenshot(payload []byte) {
	deliver(r.screenshots, payload)
}

// DeliverAudio hands an uploaded audio segment to a pending request.
func (r *Remote) DeliverAudio(payload []byte) {
	deliver(r.audio, payload)
}

// deliver keeps only the newest upload.
func deliver(ch chan []byte, payload []byte) {
	for {
		select {
		case ch <- payload:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (r *Remote) handle(msg inbound) {
	switch msg.Type {
	case msgTranscript:
		r.push(voice.RecognitionEvent{Text: msg.Text, IsFinal: msg.IsFinal})
	case msgRecognitionError:
		kind := voice.ErrorKind(msg.Kind)
		if kind == "" {
			kind = voice.ErrorAudioCapture
		}
		r.push(voice.RecognitionEvent{Err: &voice.RecognitionError{Kind: kind, Message: msg.Message}})
	case msgRecognitionEnd:
		r.mu.Lock()
		if r.rec != nil {
			r.closeLocked(r.rec)
		}
		r.mu.Unlock()
	case msgPlaybackDone:
		r.mu.Lock()
		done := r.playback
		r.playback = nil
		r.mu.Unlock()
		if done != nil {
			done <- struct{}{}
		}
	default:
		r.log.Debugf("Ignoring %q message", msg.Type)
	}
}

func (r *Remote) push(ev voice.RecognitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil || r.rec.closed {
		r.log.Debugf("Recognition result with no active stream dropped")
		return
	}
	select {
	case r.rec.events <- ev:
	default:
		r.log.Warnf("Recognition stream full, result dropped")
	}
}

// Close ends recognition and disconnects every client.
func (r *Remote) Close() {
	r.mu.Lock()
	if r.rec != nil {
		r.closeLocked(r.rec)
	}
	r.mu.Unlock()
	r.hub.Close()
}
