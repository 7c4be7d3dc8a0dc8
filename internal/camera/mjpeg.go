package camera

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NewMJPEG pulls a multipart/x-mixed-replace stream from an IP camera.
func NewMJPEG(url string, client *http.Client, logger *zap.Logger) Source {
	return supervise(url, 2*time.Second, logger, func(ctx context.Context, h *hub) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %s", resp.Status)
		}

		mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
			// some cameras send bare concatenated JPEGs
			return readFrames(resp.Body, h)
		}
		mr := multipart.NewReader(resp.Body, strings.TrimPrefix(params["boundary"], "--"))
		for {
			part, err := mr.NextPart()
			if err != nil {
				return err
			}
			frame, err := io.ReadAll(io.LimitReader(part, maxFrameSize))
			part.Close()
			if err != nil {
				return err
			}
			if len(frame) > 0 {
				h.publish(frame, nil)
			}
		}
	})
}
