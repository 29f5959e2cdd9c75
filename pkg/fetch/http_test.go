package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Fetch(t *testing.T) {
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/core.db":
			if since := r.Header.Get("If-Modified-Since"); since != "" {
				ifModifiedSince, err := http.ParseTime(since)
				if err == nil && !modified.After(ifModifiedSince) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
			w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
			_, _ = w.Write([]byte("archive"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(5*time.Second, "test-agent")
	base, err := url.Parse(server.URL)
	require.NoError(t, err)

	t.Run("unconditional download", func(t *testing.T) {
		resp, err := client.Fetch(context.Background(), base.JoinPath("core.db"), time.Time{})
		require.NoError(t, err)
		defer resp.Close()

		assert.Equal(t, ResultOK, resp.Result)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, modified.Equal(resp.LastModified))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "archive", string(body))
	})

	t.Run("not modified", func(t *testing.T) {
		resp, err := client.Fetch(context.Background(), base.JoinPath("core.db"), modified.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, ResultNotModified, resp.Result)
		assert.Nil(t, resp.Body)
		assert.NoError(t, resp.Close())
	})

	t.Run("modified since an older copy", func(t *testing.T) {
		resp, err := client.Fetch(context.Background(), base.JoinPath("core.db"), modified.Add(-time.Hour))
		require.NoError(t, err)
		defer resp.Close()
		assert.Equal(t, ResultOK, resp.Result)
	})

	t.Run("other status", func(t *testing.T) {
		resp, err := client.Fetch(context.Background(), base.JoinPath("missing.db"), time.Time{})
		require.NoError(t, err)
		assert.Equal(t, ResultOther, resp.Result)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Nil(t, resp.Body)
	})
}

func TestHTTPClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	server.Close()

	_, err = NewHTTPClient(time.Second, "").Fetch(context.Background(), u.JoinPath("core.db"), time.Time{})
	assert.Error(t, err)
}

func TestHTTPClient_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	_, err = NewHTTPClient(0, "").Fetch(ctx, u, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "ok", ResultOK.String())
	assert.Equal(t, "not modified", ResultNotModified.String())
	assert.Equal(t, "other", ResultOther.String())
}
