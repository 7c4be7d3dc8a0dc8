package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"faceattend/internal/face"
)

// detectedFace is one entry of the /detect response.
type detectedFace struct {
	Box        [4]int    `json:"box"`
	Descriptor []float32 `json:"descriptor"`
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with configurable timeout.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // Face processing can take time
		},
	}
}

// Detect uploads a JPEG and returns every face the service found.
func (c *Client) Detect(ctx context.Context, jpeg []byte) ([]face.Face, error) {
	if c.Skip {
		return []face.Face{mockFace()}, nil
	}
	if len(jpeg) == 0 {
		return nil, fmt.Errorf("image required")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/detect", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Faces []detectedFace `json:"faces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	faces := make([]face.Face, 0, len(out.Faces))
	for i, f := range out.Faces {
		d, err := face.DescriptorFromSlice(f.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		faces = append(faces, face.Face{
			Rect:       image.Rect(f.Box[0], f.Box[1], f.Box[2], f.Box[3]),
			Descriptor: d,
		})
	}
	return faces, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}

	return nil
}

// mockFace is a fixed centred face used when the service is skipped.
func mockFace() face.Face {
	var d face.Descriptor
	for i := range d {
		d[i] = 0.01 * float32(i%10)
	}
	return face.Face{Rect: image.Rect(220, 140, 420, 340), Descriptor: d}
}
