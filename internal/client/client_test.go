package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandson7/product-image-ocr-112820251703/internal/api/dto"
)

func newTestClient(url string) *Client {
	return New(url, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Submit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload", r.URL.Path)

		var req dto.UploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.FileType != "image/jpeg" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "fileType: must be an image media type"})
			return
		}
		_ = json.NewEncoder(w).Encode(dto.UploadResponse{ImageID: "J1", UploadURL: "http://upload/J1"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL + "/")

	resp, err := c.Submit(context.Background(), "shoe.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "J1", resp.ImageID)
	assert.Equal(t, "http://upload/J1", resp.UploadURL)

	_, err = c.Submit(context.Background(), "doc.pdf", "application/pdf")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "fileType: must be an image media type", statusErr.Message)
}

func TestClient_Upload(t *testing.T) {
	var gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient("http://unused")
	require.NoError(t, c.Upload(context.Background(), srv.URL+"/bucket/key?sig=1", "image/png", []byte("png")))
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, []byte("png"), gotBody)
}

func TestClient_GetResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/results/J1":
			_ = json.NewEncoder(w).Encode(dto.ResultResponse{ImageID: "J1", Status: "COMPLETED"})
		case "/results/boom":
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "Internal server error"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "Image not found"})
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	resp, err := c.GetResult(context.Background(), "J1")
	require.NoError(t, err)
	assert.True(t, IsTerminal(resp))

	_, err = c.GetResult(context.Background(), "J2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.GetResult(context.Background(), "boom")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestClient_GetResult_EscapesID(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "Image not found"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.GetResult(context.Background(), "a/b?c#d")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "/results/a%2Fb%3Fc%23d", gotPath)
	assert.Empty(t, gotQuery)
}
