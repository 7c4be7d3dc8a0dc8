// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_frames_streamed_total",
		Help: "JPEG frames written to video feed clients.",
	})
	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_faces_detected_total",
		Help: "Faces returned by the detector.",
	})
	FacesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_faces_matched_total",
		Help: "Detected faces matched to an enrolled student.",
	})
	RecognitionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_recognition_errors_total",
		Help: "Failed detector or gallery calls.",
	})
	DetectSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "faceattend_detect_seconds",
		Help:    "Latency of face detection calls.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})
	AttendanceRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_attendance_recorded_total",
		Help: "Attendance rows inserted.",
	})
	AttendanceDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_attendance_duplicates_total",
		Help: "Recognitions ignored because the student was already present that day.",
	})
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faceattend_rate_limited_total",
		Help: "Requests rejected by a rate limiter.",
	}, []string{"limiter"})
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "faceattend_queue_depth",
		Help: "Recognition messages waiting in the queue.",
	})
	QueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_queue_dropped_total",
		Help: "Queue messages discarded because they could not be decoded.",
	})
)
