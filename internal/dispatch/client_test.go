package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 2*time.Second)
	require.NoError(t, err)
	return c, &calls
}

func TestDispatchSuccess(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, endpointQuery, r.URL.Path)

		var req QueryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepak.mehta", req.Username)
		assert.Equal(t, "How many orders?", req.Query)

		w.Write([]byte(`{"success": true, "answer": "**42** orders"}`))
	})

	res := c.Dispatch(context.Background(), "deepak.mehta", "How many orders?")
	assert.Equal(t, KindSuccess, res.Kind)
	assert.True(t, res.OK())
	assert.Equal(t, "**42** orders", res.Answer)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestDispatchRefused(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success": false, "message": "Unauthorized"}`))
	})

	res := c.Dispatch(context.Background(), "nobody", "hi")
	assert.Equal(t, KindRefused, res.Kind)
	assert.Equal(t, "Unauthorized", res.Message)
	assert.NoError(t, res.Err)
}

func TestDispatchUnavailable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `<html>bad gateway</html>`},
		{"empty body", ``},
		{"missing success flag", `{"answer": "x"}`},
		{"success without answer", `{"success": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			res := c.Dispatch(context.Background(), "u", "q")
			assert.Equal(t, KindUnavailable, res.Kind)
			assert.Error(t, res.Err)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls), "no retries")
		})
	}
}

func TestDispatchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, time.Second)
	require.NoError(t, err)
	res := c.Dispatch(context.Background(), "u", "q")
	assert.Equal(t, KindUnavailable, res.Kind)
	assert.Error(t, res.Err)
}

func TestDispatchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(srv.URL, 50*time.Millisecond)
	require.NoError(t, err)
	res := c.Dispatch(context.Background(), "u", "q")
	assert.Equal(t, KindUnavailable, res.Kind)
}

func TestNormalizeServerURL(t *testing.T) {
	got, err := NormalizeServerURL("127.0.0.1:9100/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9100", got)

	got, err = NormalizeServerURL("https://assistant.example.com/api/")
	require.NoError(t, err)
	assert.Equal(t, "https://assistant.example.com", got)

	_, err = NormalizeServerURL("http://")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, endpointLogin, r.URL.Path)
		var req LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password == "secret" {
			w.Write([]byte(`{"success": true, "message": "Login successful", "user": {"id": 7, "username": "ana"}}`))
			return
		}
		w.Write([]byte(`{"success": false, "message": "Invalid credentials"}`))
	})

	ok, err := c.Login(context.Background(), "ana", "secret")
	require.NoError(t, err)
	assert.True(t, ok.Success)
	require.NotNil(t, ok.User)
	assert.Equal(t, "ana", ok.User.Username)

	bad, err := c.Login(context.Background(), "ana", "wrong")
	require.NoError(t, err)
	assert.False(t, bad.Success)
	assert.Equal(t, "Invalid credentials", bad.Message)
}
