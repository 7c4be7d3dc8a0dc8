package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"faceattend/internal/metrics"
	"faceattend/internal/queue"
)

// depthInterval is how often the worker samples the queue length.
const depthInterval = 15 * time.Second

// MessageRecognized is the queue message type published for each matched face.
const MessageRecognized = "recognized"

// Recognition is the body of a recognized message.
type Recognition struct {
	StudentID uint      `json:"student_id"`
	SeenAt    time.Time `json:"seen_at"`
}

// NewRecognitionMessage encodes a recognition for the queue.
func NewRecognitionMessage(studentID uint, seenAt time.Time) (queue.Message, error) {
	return queue.Encode(MessageRecognized, Recognition{StudentID: studentID, SeenAt: seenAt.UTC()})
}

// ParseRecognition decodes a recognized message body.
func ParseRecognition(msg queue.Message) (Recognition, error) {
	var r Recognition
	if err := msg.Decode(MessageRecognized, &r); err != nil {
		return Recognition{}, err
	}
	if r.StudentID == 0 {
		return Recognition{}, errors.New("recognition without student id")
	}
	return r, nil
}

// Worker consumes recognition messages and records attendance.
type Worker struct {
	svc    *Service
	logger *zap.Logger
}

// NewWorker creates a worker backed by svc.
func NewWorker(svc *Service, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{svc: svc, logger: logger}
}

// Run processes messages until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	w.logger.Info("attendance worker started")
	ticker := time.NewTicker(depthInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				w.logger.Info("attendance worker stopped")
				return nil
			}
			w.handle(ctx, msg)
		case <-ticker.C:
			if n, err := q.Len(ctx); err == nil {
				metrics.QueueDepth.Set(float64(n))
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	rec, err := ParseRecognition(msg)
	if err != nil {
		metrics.QueueDropped.Inc()
		w.logger.Warn("dropping message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	res, err := w.svc.Record(ctx, rec.StudentID, rec.SeenAt)
	if err != nil {
		w.logger.Error("record attendance failed", zap.Uint("student_id", rec.StudentID), zap.Error(err))
		return
	}
	if !res.Created {
		w.logger.Debug("already present today", zap.Uint("student_id", rec.StudentID))
	}
}
