package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

func newTestClient(timeout time.Duration, retries int) *Client {
	return New(Config{
		Client:  &http.Client{},
		Timeout: timeout,
		Backoff: BackoffConfig{MaxRetries: retries, InitialInterval: 5 * time.Millisecond, MaxInterval: 20 * time.Millisecond},
	})
}

func TestGet_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := newTestClient(time.Second, 0)

	body, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, DefaultUserAgent, gotUA)

	_, err = c.Get(context.Background(), srv.URL, http.Header{"User-Agent": []string{BrowserUserAgent}})
	require.NoError(t, err)
	assert.Equal(t, BrowserUserAgent, gotUA)
}

func TestGet_NonSuccessIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(time.Second, 2).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var fe *resort.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestClient(time.Second, 3).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_NoRetryWhenBudgetIsZero(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(time.Second, 0).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_TimeoutError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestClient(50*time.Millisecond, 0).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var te *resort.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGetJSON_MalformedBodyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lifts": [`))
	}))
	defer srv.Close()

	var v map[string]interface{}
	err := newTestClient(time.Second, 0).GetJSON(context.Background(), srv.URL, nil, &v)

	var pe *resort.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestGet_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(time.Second, 0)
	for i := 0; i < 5; i++ {
		_, _ = c.Get(context.Background(), srv.URL, nil)
	}

	_, err := c.Get(context.Background(), srv.URL, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestGet_CallerCancellationDoesNotTripCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := newTestClient(2*time.Second, 0)
	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := c.Get(ctx, srv.URL+"/slow", nil)
		cancel()
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}

	body, err := c.Get(context.Background(), srv.URL+"/healthy", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestGet_ClientErrorsDoNotTripCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := newTestClient(time.Second, 0)
	for i := 0; i < 6; i++ {
		_, err := c.Get(context.Background(), srv.URL+"/missing", nil)
		var fe *resort.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	}

	_, err := c.Get(context.Background(), srv.URL+"/", nil)
	require.NoError(t, err)
}

func TestGet_ErrorsDoNotLeakAPIKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(time.Second, 0)

	_, err := c.Get(context.Background(), srv.URL+"/route?key=SECRET-KEY-123&traffic=true", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
	assert.Contains(t, err.Error(), "traffic=true")

	_, err = c.Get(context.Background(), srv.URL+"/weather?lat=1&appid=OWM-SECRET", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "OWM-SECRET")

	// network failures carry the URL too
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = c.Get(context.Background(), closed.URL+"/?key=NET-SECRET", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "NET-SECRET")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://api.test/x?key=REDACTED&q=1", RedactURL("https://api.test/x?q=1&key=abc"))
	assert.Equal(t, "https://api.test/x?APPID=REDACTED", RedactURL("https://api.test/x?APPID=abc"))
	assert.Equal(t, "https://api.test/x", RedactURL("https://user:pw@api.test/x"))
	assert.Equal(t, "https://resort.test/lifts.json", RedactURL("https://resort.test/lifts.json"))
}
