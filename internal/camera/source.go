// Package camera produces JPEG frames from a local device, an IP camera or
// a fixed set of images.
package camera

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Frame after Close.
var ErrClosed = errors.New("camera closed")

// Source yields JPEG frames. Frame returns the most recent frame, waiting only
// until the first one is available.
type Source interface {
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// Options selects and configures a Source.
type Options struct {
	Kind      string // ffmpeg, mjpeg or static
	Device    string
	URL       string
	StaticDir string
	FFmpegBin string
}

// Open starts the configured source.
func Open(opts Options, logger *zap.Logger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch opts.Kind {
	case "ffmpeg":
		return NewFFmpeg(opts.FFmpegBin, opts.Device, logger), nil
	case "mjpeg":
		return NewMJPEG(opts.URL, &http.Client{}, logger), nil
	case "static":
		return LoadStatic(opts.StaticDir)
	default:
		return nil, fmt.Errorf("unknown camera source %q", opts.Kind)
	}
}

// hub holds the latest frame or capture error.
type hub struct {
	mu     sync.Mutex
	frame  []byte
	err    error
	ready  chan struct{}
	closed bool
}

func newHub() *hub {
	return &hub{ready: make(chan struct{})}
}

func (h *hub) publish(frame []byte, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.frame, h.err = frame, err
	close(h.ready)
	h.ready = make(chan struct{})
}

func (h *hub) latest(ctx context.Context) ([]byte, error) {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, ErrClosed
		}
		if h.frame != nil || h.err != nil {
			f, err := h.frame, h.err
			h.mu.Unlock()
			return f, err
		}
		ready := h.ready
		h.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.ready)
}

const maxBackoff = 30 * time.Second

// supervised runs a capture loop in the background and restarts it after
// failures until closed.
type supervised struct {
	hub    *hub
	cancel context.CancelFunc
	done   chan struct{}
}

func supervise(name string, backoff time.Duration, logger *zap.Logger, run func(ctx context.Context, h *hub) error) *supervised {
	ctx, cancel := context.WithCancel(context.Background())
	s := &supervised{hub: newHub(), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		wait := backoff
		for {
			started := time.Now()
			err := run(ctx, s.hub)
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				err = errors.New("stream ended")
			}
			if time.Since(started) > maxBackoff {
				wait = backoff
			}
			logger.Error("camera capture failed", zap.String("source", name), zap.Duration("retry_in", wait), zap.Error(err))
			s.hub.publish(nil, fmt.Errorf("camera %s: %w", name, err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			wait = min(wait*2, maxBackoff)
		}
	}()
	return s
}

// Frame returns the latest captured frame.
func (s *supervised) Frame(ctx context.Context) ([]byte, error) {
	return s.hub.latest(ctx)
}

// Close stops capturing.
func (s *supervised) Close() error {
	s.cancel()
	<-s.done
	s.hub.close()
	return nil
}
