package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.telegram.org"

// maxFileSize matches the Bot API download limit.
const maxFileSize = 20 << 20

var ErrUnconfigured = errors.New("telegram bot token not configured")

// Client talks to the Telegram Bot API. It sends replies and downloads the
// files referenced by inbound updates.
type Client struct {
	token  string
	client *http.Client
	logger *slog.Logger
	apiURL string
}

func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: defaultAPIURL,
		logger: logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
}

// SendMessage posts a plain-text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}
	if _, err := c.call(ctx, http.MethodPost, "sendMessage", bytes.NewReader(body)); err != nil {
		return err
	}
	c.logger.Debug("sent telegram message", "chat_id", chatID)
	return nil
}

// FetchImage resolves a file ID through getFile and downloads its bytes.
func (c *Client) FetchImage(ctx context.Context, fileID string) ([]byte, error) {
	result, err := c.call(ctx, http.MethodGet, "getFile?file_id="+url.QueryEscape(fileID), nil)
	if err != nil {
		return nil, err
	}
	var file struct {
		FilePath string `json:"file_path"`
		FileSize int64  `json:"file_size"`
	}
	if err := json.Unmarshal(result, &file); err != nil {
		return nil, fmt.Errorf("parse getFile result: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("getFile returned no path for %s", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/file/bot"+c.token+"/"+file.FilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", stripURL(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fileID, maxFileSize)
	}
	c.logger.Debug("downloaded telegram file", "file_id", fileID, "bytes", len(data))
	return data, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, body io.Reader) (json.RawMessage, error) {
	if c.token == "" {
		return nil, ErrUnconfigured
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+"/bot"+c.token+"/"+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	name, _, _ := strings.Cut(endpoint, "?")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", name, stripURL(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !apiResp.OK {
		return nil, fmt.Errorf("telegram %s error %d: %s", name, resp.StatusCode, apiResp.Description)
	}
	return apiResp.Result, nil
}

// stripURL drops the request URL from transport errors. Bot API URLs carry
// the token.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
