package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"faceattend/internal/attendance"
	"faceattend/internal/auth"
	"faceattend/internal/camera"
	"faceattend/internal/cloudinary"
	"faceattend/internal/config"
	"faceattend/internal/face"
	"faceattend/internal/logging"
	"faceattend/internal/queue"
	"faceattend/internal/store"
	"faceattend/internal/stream"
	"faceattend/internal/students"
	"faceattend/internal/web"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	checks := []web.HealthCheck{{Name: "db", Check: db.Ping}}

	var (
		q    queue.Queue
		revs auth.Revocations
	)
	if cfg.QueueBackend == "redis" {
		redisClient, err := store.NewRedis(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, logger.Named("queue"))
		revs = auth.NewRedisRevocations(redisClient.Client)
		checks = append(checks, web.HealthCheck{Name: "redis", Check: redisClient.Ping})
	} else {
		q = queue.NewInMemory(256)
		revs = auth.NewMemoryRevocations()
	}

	recognizer, faceHealth, closeRecognizer, err := newRecognizer(cfg)
	if err != nil {
		return err
	}
	defer closeRecognizer()
	if faceHealth != nil {
		if err := faceHealth(ctx); err != nil {
			logger.Warn("face service not available", zap.Error(err))
		} else {
			logger.Info("face service connected", zap.String("url", cfg.FaceServiceURL))
		}
		checks = append(checks, web.HealthCheck{Name: "face", Check: faceHealth})
	}

	var photos students.PhotoStore
	if cfg.CloudinaryEnabled() {
		photos = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	} else {
		logger.Info("cloudinary not configured, enrollment photos are not stored")
	}

	studentRepo := students.NewRepository(db.Gorm)
	gallery := face.NewGallery(studentRepo, cfg.FaceTolerance, cfg.GalleryRefresh)
	studentSvc := students.NewService(studentRepo, recognizer, gallery, photos, logger.Named("students"))
	attendanceSvc := attendance.NewService(attendance.NewRepository(db.Gorm), loc, logger.Named("attendance"))

	if cfg.QueueBackend == "memory" {
		worker := attendance.NewWorker(attendanceSvc, logger.Named("worker"))
		go func() {
			if err := worker.Run(ctx, q); err != nil {
				logger.Error("attendance worker failed", zap.Error(err))
			}
		}()
	}

	var streamer *stream.Streamer
	src, err := camera.Open(camera.Options{
		Kind:      cfg.CameraSource,
		Device:    cfg.CameraDevice,
		URL:       cfg.CameraURL,
		StaticDir: cfg.CameraStaticDir,
		FFmpegBin: cfg.FFmpegBin,
	}, logger.Named("camera"))
	if err != nil {
		logger.Warn("camera unavailable, live feed disabled", zap.Error(err))
	} else {
		defer src.Close()
		streamer = stream.New(stream.Config{
			Source:         src,
			Recognizer:     recognizer,
			Gallery:        gallery,
			Queue:          q,
			RecognizeEvery: cfg.RecognizeEvery,
			FPS:            cfg.StreamFPS,
			Cooldown:       30 * time.Second,
			Logger:         logger.Named("stream"),
		})
	}

	server, err := web.New(web.Deps{
		Students:        studentSvc,
		Attendance:      attendanceSvc,
		Admins:          auth.NewAdmins(db.Gorm),
		Sessions:        auth.NewManager(cfg.SessionSecret, cfg.SessionTTL, revs, cfg.Production()),
		Recognizer:      recognizer,
		Gallery:         gallery,
		Streamer:        streamer,
		Checks:          checks,
		Logger:          logger.Named("http"),
		RateLimitPerMin: cfg.RateLimitPerMin,
		LoginRatePerMin: cfg.LoginRatePerMin,
		CORSOrigins:     cfg.CORSOrigins,
	})
	if err != nil {
		return err
	}

	srv := newHTTPServer(ctx, ":"+cfg.HTTPPort, server.Router())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

// newHTTPServer derives request contexts from ctx so open video feeds end when
// shutdown starts. There is no WriteTimeout because /video_feed responses stay open.
func newHTTPServer(ctx context.Context, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}
