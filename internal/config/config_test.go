package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.HTTPPort != "8081" {
		t.Errorf("HTTPPort = %q, want 8081", cfg.HTTPPort)
	}
	if cfg.QueueBackend != "memory" {
		t.Errorf("QueueBackend = %q, want memory", cfg.QueueBackend)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v, want 12h", cfg.SessionTTL)
	}
	if cfg.FaceTolerance != 0.6 {
		t.Errorf("FaceTolerance = %v, want 0.6", cfg.FaceTolerance)
	}
	if cfg.RecognizeEvery != 5 {
		t.Errorf("RecognizeEvery = %d, want 5", cfg.RecognizeEvery)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", cfg.Warnings)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("FACE_SKIP", "true")
	t.Setenv("FACE_TOLERANCE", "0.45")
	t.Setenv("RECOGNIZE_EVERY", "10")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := FromEnv()
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if !cfg.FaceSkip {
		t.Error("FaceSkip = false, want true")
	}
	if cfg.FaceTolerance != 0.45 {
		t.Errorf("FaceTolerance = %v", cfg.FaceTolerance)
	}
	if cfg.RecognizeEvery != 10 {
		t.Errorf("RecognizeEvery = %d", cfg.RecognizeEvery)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "forever")
	t.Setenv("FACE_SKIP", "maybe")
	t.Setenv("RECOGNIZE_EVERY", "often")

	cfg := FromEnv()
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v, want fallback", cfg.SessionTTL)
	}
	if cfg.FaceSkip {
		t.Error("FaceSkip should fall back to false")
	}
	if cfg.RecognizeEvery != 5 {
		t.Errorf("RecognizeEvery = %d, want fallback", cfg.RecognizeEvery)
	}
	if len(cfg.Warnings) != 3 {
		t.Errorf("warnings = %v, want 3 entries", cfg.Warnings)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*App)
		wantErr string
	}{
		{"bad driver", func(a *App) { a.DBDriver = "mysql" }, "DB_DRIVER"},
		{"bad queue", func(a *App) { a.QueueBackend = "kafka" }, "QUEUE_BACKEND"},
		{"bad face backend", func(a *App) { a.FaceBackend = "opencv" }, "FACE_BACKEND"},
		{"mjpeg without url", func(a *App) { a.CameraSource = "mjpeg" }, "CAMERA_URL"},
		{"static without dir", func(a *App) { a.CameraSource = "static" }, "CAMERA_STATIC_DIR"},
		{"zero recognize interval", func(a *App) { a.RecognizeEvery = 0 }, "RECOGNIZE_EVERY"},
		{"stream fps out of range", func(a *App) { a.StreamFPS = 120 }, "STREAM_FPS"},
		{"dev secret in production", func(a *App) { a.Env = "production" }, "SESSION_SECRET"},
		{"unknown timezone", func(a *App) { a.Timezone = "Mars/Olympus" }, "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
