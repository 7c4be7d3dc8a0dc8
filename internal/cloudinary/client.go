package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.cloudinary.com/v1_1"

// maxErrorBody caps how much of a failed response is quoted in errors.
const maxErrorBody = 4096

// Client stores enrollment photos in Cloudinary through the signed REST API.
type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	APIBase   string
	HTTP      *http.Client

	now func() time.Time
}

// New creates a Cloudinary client.
func New(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		APIBase:   defaultAPIBase,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

// UploadResult is the subset of the upload response we keep.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Version   int64  `json:"version"`
}

type destroyResult struct {
	Result string `json:"result"`
}

// Upload stores a photo under publicID, replacing any previous version, and returns its HTTPS URL.
func (c *Client) Upload(ctx context.Context, data []byte, publicID string) (string, error) {
	params := map[string]string{
		"public_id":  publicID,
		"overwrite":  "true",
		"invalidate": "true",
	}
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	c.signParams(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", publicID+".jpg")
	if err != nil {
		return "", fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("cloudinary: close form failed: %w", err)
	}

	var res UploadResult
	if err := c.post(ctx, "upload", w.FormDataContentType(), &buf, &res); err != nil {
		return "", err
	}
	if res.SecureURL != "" {
		return res.SecureURL, nil
	}
	return res.URL, nil
}

// Delete removes the photo stored under publicID. Missing photos are not an error.
func (c *Client) Delete(ctx context.Context, publicID string) error {
	// destroy takes the folder as part of the id
	params := map[string]string{
		"public_id":  c.qualified(publicID),
		"invalidate": "true",
	}
	c.signParams(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("cloudinary: close form failed: %w", err)
	}

	var res destroyResult
	if err := c.post(ctx, "destroy", w.FormDataContentType(), &buf, &res); err != nil {
		return err
	}
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("cloudinary: destroy %s: %s", publicID, res.Result)
	}
	return nil
}

func (c *Client) post(ctx context.Context, action, contentType string, body io.Reader, out any) error {
	url := fmt.Sprintf("%s/%s/image/%s", c.APIBase, c.CloudName, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary: %s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("cloudinary: %s failed (%d): %s", action, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cloudinary: decode %s response failed: %w", action, err)
	}
	return nil
}

// signParams adds timestamp, api_key and signature to params.
func (c *Client) signParams(params map[string]string) {
	params["timestamp"] = strconv.FormatInt(c.now().Unix(), 10)
	params["api_key"] = c.APIKey
	params["signature"] = c.sign(params)
}

func (c *Client) qualified(publicID string) string {
	if c.Folder == "" {
		return publicID
	}
	return strings.TrimSuffix(c.Folder, "/") + "/" + publicID
}

// sign computes the Cloudinary API signature. api_key, file, resource_type
// and the signature itself are excluded.
func (c *Client) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true, "signature": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + c.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
