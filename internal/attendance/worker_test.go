package attendance

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"faceattend/internal/queue"
)

func TestRecognitionMessageRoundTrip(t *testing.T) {
	seen := time.Date(2024, 5, 6, 9, 15, 0, 0, testLoc)
	msg, err := NewRecognitionMessage(7, seen)
	if err != nil {
		t.Fatalf("NewRecognitionMessage: %v", err)
	}
	rec, err := ParseRecognition(msg)
	if err != nil {
		t.Fatalf("ParseRecognition: %v", err)
	}
	if rec.StudentID != 7 || !rec.SeenAt.Equal(seen) {
		t.Errorf("got %+v", rec)
	}
}

func TestParseRecognitionRejects(t *testing.T) {
	tests := []struct {
		name string
		msg  queue.Message
	}{
		{"wrong type", queue.Message{Type: "checkin", Body: []byte(`{"student_id":1}`)}},
		{"bad json", queue.Message{Type: MessageRecognized, Body: []byte(`{`)}},
		{"missing id", queue.Message{Type: MessageRecognized, Body: []byte(`{}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRecognition(tt.msg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWorkerRecordsFromQueue(t *testing.T) {
	svc, repo, students := newTestService(t)
	core, logs := observer.New(zap.WarnLevel)
	w := NewWorker(svc, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewInMemory(8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, q) }()

	at := time.Date(2024, 5, 6, 9, 0, 0, 0, testLoc)
	for _, id := range []uint{students[0].ID, students[0].ID, students[1].ID} {
		msg, _ := NewRecognitionMessage(id, at)
		if err := q.Publish(ctx, msg); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	q.Publish(ctx, queue.Message{Type: MessageRecognized, Body: []byte("garbage")})

	deadline := time.Now().Add(2 * time.Second)
	for {
		rows, err := repo.ListDay(context.Background(), "2024-05-06")
		if err != nil {
			t.Fatalf("ListDay: %v", err)
		}
		if len(rows) == 2 && logs.FilterMessage("dropping message").Len() == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker did not settle: rows=%d dropped=%d", len(rows), logs.FilterMessage("dropping message").Len())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
