package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alvmarrod/profile-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload_Success(t *testing.T) {
	var gotBody map[string]interface{}
	var gotContentType, gotMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"received": 1}`))
	}))
	defer srv.Close()

	items := []storage.Profile{{ID: "1", ScrapedAt: "2024-01-01T00:00:00.000Z"}}
	res, err := NewClient(nil).Upload(context.Background(), srv.URL, items, "user:pw@gw:823")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "user:pw@gw:823", gotBody["proxy"])
	profiles := gotBody["profiles"].([]interface{})
	require.Len(t, profiles, 1)
	assert.Equal(t, "1", profiles[0].(map[string]interface{})["id"])
	assert.Equal(t, float64(1), res["received"])
}

func TestUpload_NullProxy(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	_, err := NewClient(nil).Upload(context.Background(), srv.URL, nil, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"profiles": [], "proxy": null}`, string(raw))
}

func TestUpload_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	_, err := NewClient(nil).Upload(context.Background(), srv.URL, nil, "")
	require.Error(t, err)

	var upErr *UploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, 503, upErr.StatusCode)
	assert.Equal(t, "Service Unavailable", upErr.StatusText)
	assert.Equal(t, "maintenance", upErr.Body)
	assert.Equal(t, "Upload failed: 503 Service Unavailable - maintenance", err.Error())
}

func TestUpload_UnparseableResponse(t *testing.T) {
	for _, body := range []string{"", "ok", "[1,2]", "null"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		res, err := NewClient(nil).Upload(context.Background(), srv.URL, nil, "")
		srv.Close()

		require.NoError(t, err, body)
		assert.Equal(t, map[string]interface{}{}, res, body)
	}
}

func TestUpload_Unreachable(t *testing.T) {
	_, err := NewClient(nil).Upload(context.Background(), "http://127.0.0.1:1/in", nil, "")
	assert.ErrorContains(t, err, "failed to reach upload endpoint")

	_, err = NewClient(nil).Upload(context.Background(), "://bad", nil, "")
	assert.ErrorContains(t, err, "failed to build upload request")
}
