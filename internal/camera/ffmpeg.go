package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NewFFmpeg captures a V4L2 device through an ffmpeg subprocess emitting MJPEG
// on stdout.
func NewFFmpeg(bin, device string, logger *zap.Logger) Source {
	if bin == "" {
		bin = "ffmpeg"
	}
	return supervise(device, 2*time.Second, logger, func(ctx context.Context, h *hub) error {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		cmd := exec.CommandContext(runCtx, bin, ffmpegArgs(device)...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.WaitDelay = time.Second
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return err
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start %s: %w", bin, err)
		}
		logger.Info("camera capture started", zap.String("device", device), zap.Int("pid", cmd.Process.Pid))
		readErr := readFrames(stdout, h)
		if !errors.Is(readErr, io.EOF) {
			// nothing drains stdout any more; ffmpeg would block on a full pipe
			cancel()
			cmd.Wait()
			return readErr
		}
		if err := cmd.Wait(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%w: %s", err, lastLine(msg))
			}
			return err
		}
		return readErr
	})
}

func ffmpegArgs(device string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2", "-i", device,
		"-f", "mjpeg", "-q:v", "5",
		"-",
	}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
