// Package stream serves the annotated camera feed and turns recognized faces
// into attendance messages.
package stream

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"faceattend/internal/attendance"
	"faceattend/internal/camera"
	"faceattend/internal/face"
	"faceattend/internal/metrics"
	"faceattend/internal/queue"
)

// ContentType is the response type of the video feed.
const ContentType = "multipart/x-mixed-replace; boundary=frame"

const unknownLabel = "unknown"

// Matcher resolves descriptors to enrolled students.
type Matcher interface {
	Match(ctx context.Context, d face.Descriptor) (face.Match, bool, error)
}

// Publisher accepts recognition messages.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Config wires a Streamer.
type Config struct {
	Source     camera.Source
	Recognizer face.Recognizer
	Gallery    Matcher
	Queue      Publisher
	// RecognizeEvery runs detection on one frame out of this many.
	RecognizeEvery int
	FPS            int
	// Cooldown suppresses repeated messages for the same student.
	Cooldown      time.Duration
	DetectTimeout time.Duration
	Logger        *zap.Logger
}

// Streamer writes frames to any number of clients.
type Streamer struct {
	cfg Config
	now func() time.Time

	mu     sync.Mutex
	recent map[uint]time.Time
}

// New creates a streamer. Zero values get defaults.
func New(cfg Config) *Streamer {
	if cfg.RecognizeEvery <= 0 {
		cfg.RecognizeEvery = 5
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = 3 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Streamer{cfg: cfg, now: time.Now, recent: make(map[uint]time.Time)}
}

// Serve writes the multipart stream to w until ctx ends, a write fails or the
// camera stops delivering frames. flush is called after every part.
func (s *Streamer) Serve(ctx context.Context, w io.Writer, flush func()) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	var labels []camera.Label
	for n := 0; ; n++ {
		raw, err := s.cfg.Source.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		img, err := camera.Normalize(raw, camera.FrameWidth, camera.FrameHeight)
		if err != nil {
			s.cfg.Logger.Warn("skipping undecodable frame", zap.Error(err))
		} else {
			if n%s.cfg.RecognizeEvery == 0 && s.cfg.Recognizer != nil {
				if plain, err := camera.Encode(img); err == nil {
					labels = s.recognize(ctx, plain)
				}
			}
			camera.Annotate(img, labels)
			out, err := camera.Encode(img)
			if err != nil {
				return err
			}
			if err := WriteFrame(w, out); err != nil {
				return nil
			}
			if flush != nil {
				flush()
			}
			metrics.FramesStreamed.Inc()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// WriteFrame writes one multipart part.
func WriteFrame(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// recognize detects and matches faces in a normalized frame. Failures are
// logged and yield no labels.
func (s *Streamer) recognize(ctx context.Context, jpeg []byte) []camera.Label {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DetectTimeout)
	defer cancel()

	start := time.Now()
	faces, err := s.cfg.Recognizer.Detect(dctx, jpeg)
	metrics.DetectSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecognitionErrors.Inc()
		s.cfg.Logger.Warn("face detection failed", zap.Error(err))
		return nil
	}
	metrics.FacesDetected.Add(float64(len(faces)))

	labels := make([]camera.Label, 0, len(faces))
	seenAt := s.now()
	for _, f := range faces {
		label := camera.Label{Rect: f.Rect, Text: unknownLabel}
		if s.cfg.Gallery != nil {
			m, ok, err := s.cfg.Gallery.Match(ctx, f.Descriptor)
			if err != nil {
				metrics.RecognitionErrors.Inc()
				s.cfg.Logger.Warn("gallery match failed", zap.Error(err))
			} else if ok {
				metrics.FacesMatched.Inc()
				label.Text, label.Known = m.Name, true
				s.publish(ctx, m, seenAt)
			}
		}
		labels = append(labels, label)
	}
	return labels
}

func (s *Streamer) publish(ctx context.Context, m face.Match, seenAt time.Time) {
	if s.cfg.Queue == nil || !s.due(m.StudentID, seenAt) {
		return
	}
	msg, err := attendance.NewRecognitionMessage(m.StudentID, seenAt)
	if err == nil {
		err = s.cfg.Queue.Publish(ctx, msg)
	}
	if err != nil {
		s.cfg.Logger.Error("publish recognition failed", zap.Uint("student_id", m.StudentID), zap.Error(err))
		return
	}
	s.cfg.Logger.Debug("recognized", zap.Uint("student_id", m.StudentID), zap.String("name", m.Name), zap.Float64("distance", m.Distance))
}

func (s *Streamer) due(id uint, at time.Time) bool {
	if s.cfg.Cooldown <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.recent[id]; ok && at.Sub(last) < s.cfg.Cooldown {
		return false
	}
	s.recent[id] = at
	return true
}
