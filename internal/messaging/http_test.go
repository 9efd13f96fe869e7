package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Healthz(t *testing.T) {
	d, _ := newTestDispatcher(t)
	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_RejectsBadMessages(t *testing.T) {
	d, _ := newTestDispatcher(t)
	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/messages", "application/json", strings.NewReader(`{"items":[]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClient_RoundTripsThroughRouter(t *testing.T) {
	d, _ := newTestDispatcher(t)
	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 5*time.Second)
	ctx := context.Background()

	require.NoError(t, NewSink(c).SendBatch(ctx, []storage.Profile{{ID: "a"}, {ID: "b"}}))

	resp, err := c.Send(ctx, Request{Type: TypeGetCount})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status())
	// JSON numbers decode as float64
	assert.Equal(t, float64(2), resp["count"])

	resp, err = c.Send(ctx, Request{Type: TypeStopScraping})
	require.NoError(t, err)
	assert.Equal(t, ErrNoActiveTab, resp.Err())
	assert.EqualError(t, AsError(resp), ErrNoActiveTab)
}

func TestClient_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Send(context.Background(), Request{Type: TypeGetCount})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach message server")
}
