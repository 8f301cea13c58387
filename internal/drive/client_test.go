package drive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(token, folder, url string) *Client {
	c := NewClient(token, folder, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.apiURL = url
	return c
}

func TestUpload_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ya29.test" {
			t.Errorf("expected Bearer ya29.test, got %q", r.Header.Get("Authorization"))
		}
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			t.Fatalf("expected multipart/related, got %q", r.Header.Get("Content-Type"))
		}

		mr := multipart.NewReader(r.Body, params["boundary"])
		metaPart, err := mr.NextPart()
		if err != nil {
			t.Fatalf("read metadata part: %v", err)
		}
		var meta fileMetadata
		if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
			t.Fatalf("decode metadata: %v", err)
		}
		if meta.Name != "29801011234567_1.jpg" {
			t.Errorf("expected name 29801011234567_1.jpg, got %q", meta.Name)
		}
		if len(meta.Parents) != 1 || meta.Parents[0] != "folder-1" {
			t.Errorf("expected parent folder-1, got %v", meta.Parents)
		}

		mediaPart, err := mr.NextPart()
		if err != nil {
			t.Fatalf("read media part: %v", err)
		}
		if mediaPart.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("expected image/jpeg media part, got %q", mediaPart.Header.Get("Content-Type"))
		}
		data, _ := io.ReadAll(mediaPart)
		if string(data) != "JPEG" {
			t.Errorf("expected JPEG bytes, got %q", data)
		}

		w.Write([]byte(`{"id":"f1","webViewLink":"https://drive.google.com/file/d/f1/view"}`))
	}))
	defer server.Close()

	c := testClient("ya29.test", "folder-1", server.URL)
	link, err := c.Upload(context.Background(), "29801011234567_1.jpg", []byte("JPEG"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != "https://drive.google.com/file/d/f1/view" {
		t.Errorf("unexpected link %q", link)
	}
}

func TestUpload_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid Credentials"}}`))
	}))
	defer server.Close()

	c := testClient("expired", "folder-1", server.URL)
	if _, err := c.Upload(context.Background(), "a.jpg", []byte("JPEG")); err == nil {
		t.Error("expected error on 401")
	}
}

func TestUpload_MissingLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"f1"}`))
	}))
	defer server.Close()

	c := testClient("ya29.test", "folder-1", server.URL)
	if _, err := c.Upload(context.Background(), "a.jpg", []byte("JPEG")); err == nil {
		t.Error("expected error when no link is returned")
	}
}

func TestUpload_Unconfigured(t *testing.T) {
	for _, c := range []*Client{
		testClient("", "folder-1", "http://127.0.0.1:1"),
		testClient("ya29.test", "", "http://127.0.0.1:1"),
	} {
		if _, err := c.Upload(context.Background(), "a.jpg", nil); !errors.Is(err, ErrUnconfigured) {
			t.Errorf("expected ErrUnconfigured, got %v", err)
		}
	}
}
