package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

const defaultUploadURL = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart&fields=id,webViewLink"

var ErrUnconfigured = errors.New("drive access token or folder not configured")

// Client uploads card images into a single Drive folder.
type Client struct {
	token    string
	folderID string
	client   *http.Client
	logger   *slog.Logger
	apiURL   string
}

func NewClient(token, folderID string, logger *slog.Logger) *Client {
	return &Client{
		token:    token,
		folderID: folderID,
		client:   &http.Client{Timeout: 60 * time.Second},
		apiURL:   defaultUploadURL,
		logger:   logger,
	}
}

type fileMetadata struct {
	Name     string   `json:"name"`
	Parents  []string `json:"parents"`
	MimeType string   `json:"mimeType"`
}

// Upload stores the image as a JPEG under name and returns its web view link.
func (c *Client) Upload(ctx context.Context, name string, image []byte) (string, error) {
	if c.token == "" || c.folderID == "" {
		return "", ErrUnconfigured
	}

	meta, err := json.Marshal(fileMetadata{Name: name, Parents: []string{c.folderID}, MimeType: "image/jpeg"})
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writePart(mw, "application/json; charset=UTF-8", meta); err != nil {
		return "", err
	}
	if err := writePart(mw, "image/jpeg", image); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("drive upload: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("drive error %d: %s", resp.StatusCode, string(respBody))
	}

	var file struct {
		ID          string `json:"id"`
		WebViewLink string `json:"webViewLink"`
	}
	if err := json.Unmarshal(respBody, &file); err != nil {
		return "", fmt.Errorf("parse drive response: %w", err)
	}
	if file.WebViewLink == "" {
		return "", fmt.Errorf("drive returned no link for %s", name)
	}

	c.logger.Info("uploaded card image", "name", name, "file_id", file.ID)
	return file.WebViewLink, nil
}

func writePart(mw *multipart.Writer, contentType string, data []byte) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	w, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write part: %w", err)
	}
	return nil
}
