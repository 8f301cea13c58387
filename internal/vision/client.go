package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultAPIURL = "https://vision.googleapis.com/v1/images:annotate"

var ErrUnconfigured = errors.New("vision api key not configured")

// Client reads the text on a card photo with Cloud Vision text detection.
type Client struct {
	apiKey string
	client *http.Client
	apiURL string
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 60 * time.Second},
		apiURL: defaultAPIURL,
	}
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features []feature `json:"features"`
}

type feature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []struct {
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		Error *apiError `json:"error,omitempty"`
	} `json:"responses"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// ExtractText returns the full detected text of the image, or "" when the
// image holds no text.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	if c.apiKey == "" {
		return "", ErrUnconfigured
	}

	var ir imageRequest
	ir.Image.Content = base64.StdEncoding.EncodeToString(image)
	ir.Features = []feature{{Type: "TEXT_DETECTION"}}
	body, err := json.Marshal(annotateRequest{Requests: []imageRequest{ir}})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"?key="+url.QueryEscape(c.apiKey), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("api error %d: %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp annotateResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(apiResp.Responses) == 0 {
		return "", fmt.Errorf("empty response")
	}
	r := apiResp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("annotate error %d: %s", r.Error.Code, r.Error.Message)
	}
	// The first annotation is the whole text block; the rest are words.
	if len(r.TextAnnotations) == 0 {
		return "", nil
	}
	return r.TextAnnotations[0].Description, nil
}
