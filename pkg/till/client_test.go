package till_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillcache/till_sdk_go/pkg/till"
	"github.com/tillcache/till_sdk_go/pkg/till/mock"
)

func TestNewDefaults(t *testing.T) {
	c := till.New("", "")
	require.Equal(t, "localhost", c.Host())
	require.Equal(t, "5632", c.Port())

	c = till.New("cache.internal", "8080")
	require.Equal(t, till.Config{Host: "cache.internal", Port: "8080"}, c.Config())
}

func TestObjectPath(t *testing.T) {
	require.Equal(t, "/api/v1/object/foo", till.ObjectPath("foo"))
	require.Equal(t, "/api/v1/object/", till.ObjectPath(""))
	require.Equal(t, "/api/v1/object/a/b", till.ObjectPath("a/b"))
}

func TestGetReturnsBodyOn200(t *testing.T) {
	srv := newTillServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path == "/api/v1/object/foo" {
			io.WriteString(w, "hello")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := till.New(srv.Host, srv.Port)
	ctx := context.Background()

	value, ok := c.Get(ctx, "foo")
	require.True(t, ok)
	require.Equal(t, "hello", value)
	require.True(t, c.Exists(ctx, "foo"))

	value, ok = c.Get(ctx, "missing")
	require.False(t, ok)
	require.Empty(t, value)
	require.False(t, c.Exists(ctx, "missing"))
}

func TestGetTreatsNon200AsMiss(t *testing.T) {
	statuses := []int{http.StatusCreated, http.StatusNoContent, http.StatusBadRequest, http.StatusInternalServerError}
	for _, status := range statuses {
		status := status
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			srv := newTillServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				io.WriteString(w, "ignored")
			}))
			defer srv.Close()

			c := till.New(srv.Host, srv.Port)
			_, ok := c.Get(context.Background(), "foo")
			require.False(t, ok)
		})
	}
}

func TestExistsFalseForEmptyValue(t *testing.T) {
	srv := newTillServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := till.New(srv.Host, srv.Port)
	value, ok := c.Get(context.Background(), "empty")
	require.True(t, ok)
	require.Empty(t, value)
	require.False(t, c.Exists(context.Background(), "empty"))
}

func TestGetPreservesUTF8(t *testing.T) {
	const payload = "héllo, 世界"
	srv := newTillServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	value, ok := till.New(srv.Host, srv.Port).Get(context.Background(), "k")
	require.True(t, ok)
	require.Equal(t, payload, value)
}

func TestSetSendsLifespanAndBody(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotLife  string
		gotLen   int64
		gotBody  string
		requests int
	)
	srv := newTillServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests++
		gotPath = r.URL.Path
		gotLife = r.Header.Get("X-Till-Lifespan")
		gotLen = r.ContentLength
		gotBody = string(body)
		mu.Unlock()
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	const value = "naïve"
	till.New(srv.Host, srv.Port).Set(context.Background(), "greeting", value)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, requests, "set must not retry even on 5xx")
	require.Equal(t, "/api/v1/object/greeting", gotPath)
	require.Equal(t, "default", gotLife)
	require.Equal(t, int64(len(value)), gotLen)
	require.Equal(t, value, gotBody)
}

func TestIsActive(t *testing.T) {
	cases := map[int]bool{
		http.StatusBadRequest:          true,
		http.StatusOK:                  false,
		http.StatusNotFound:            false,
		http.StatusInternalServerError: false,
	}
	for status, want := range cases {
		status, want := status, want
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			srv := newTillServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/object/", r.URL.Path)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			require.Equal(t, want, till.New(srv.Host, srv.Port).IsActive(context.Background()))
		})
	}
}

func TestBaseURLJoinsIPv6Hosts(t *testing.T) {
	require.Equal(t, "http://localhost:5632", till.Config{Host: "localhost", Port: "5632"}.BaseURL())
	require.Equal(t, "http://[::1]:5632", till.Config{Host: "::1", Port: "5632"}.BaseURL())
}

func TestKeysReachServerUnchanged(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := newTillServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := till.New(srv.Host, srv.Port)
	ctx := context.Background()
	keys := []string{"../secret", "a/./b", "nested/key", "colon:key", "k?v=1"}
	var want []string
	for _, key := range keys {
		c.Get(ctx, key)
		c.Set(ctx, key, "v")
		want = append(want, "GET "+till.ObjectPath(key), "POST "+till.ObjectPath(key))
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, want, seen)
}

func TestRedirectsAreNotFollowed(t *testing.T) {
	for _, status := range []int{http.StatusMovedPermanently, http.StatusFound, http.StatusNotModified} {
		status := status
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			var (
				mu   sync.Mutex
				seen []string
			)
			srv := newTillServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				seen = append(seen, r.Method+" "+r.URL.Path)
				mu.Unlock()
				switch {
				case r.URL.Path == "/elsewhere" && r.Method == http.MethodGet:
					io.WriteString(w, "redirected-body")
				case r.URL.Path == "/elsewhere":
					w.WriteHeader(http.StatusBadRequest)
				case status == http.StatusNotModified:
					w.WriteHeader(status)
				default:
					http.Redirect(w, r, "/elsewhere", status)
				}
			}))
			defer srv.Close()

			c := till.New(srv.Host, srv.Port, till.WithHTTPClient(&http.Client{}))
			ctx := context.Background()

			value, ok := c.Get(ctx, "moved")
			require.False(t, ok)
			require.Empty(t, value)
			require.False(t, c.Exists(ctx, "moved"))
			require.False(t, c.IsActive(ctx))
			c.Set(ctx, "moved", "v")

			mu.Lock()
			defer mu.Unlock()
			require.Equal(t, []string{
				"GET /api/v1/object/moved",
				"GET /api/v1/object/moved",
				"GET /api/v1/object/",
				"POST /api/v1/object/moved",
			}, seen)
		})
	}
}

func TestUnreachableServerFoldsToNegatives(t *testing.T) {
	host, port := closedAddr(t)
	c := till.New(host, port)
	ctx := context.Background()

	value, ok := c.Get(ctx, "foo")
	require.False(t, ok)
	require.Empty(t, value)
	require.NotPanics(t, func() { c.Set(ctx, "foo", "bar") })
	require.False(t, c.Exists(ctx, "foo"))
	require.False(t, c.IsActive(ctx))
}

func TestUnparseableKeyIsAMiss(t *testing.T) {
	srv := newTillServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL)
	}))
	defer srv.Close()

	c := till.New(srv.Host, srv.Port)
	_, ok := c.Get(context.Background(), "%zz")
	require.False(t, ok)
}

func TestConcurrentCalls(t *testing.T) {
	store := mock.New()
	c := till.NewWithBackend(till.Config{}, store.Backend())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + strconv.Itoa(i)
			c.Set(ctx, key, strconv.Itoa(i))
			value, ok := c.Get(ctx, key)
			assert.True(t, ok)
			assert.Equal(t, strconv.Itoa(i), value)
		}(i)
	}
	wg.Wait()

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 32)
}

func TestMockBackendRoundTrip(t *testing.T) {
	c := till.NewWithBackend(till.Config{}, mock.New().Backend())
	ctx := context.Background()

	require.True(t, c.IsActive(ctx))
	require.False(t, c.Exists(ctx, "foo"))

	c.Set(ctx, "foo", "bar")
	value, ok := c.Get(ctx, "foo")
	require.True(t, ok)
	require.Equal(t, "bar", value)
	require.True(t, c.Exists(ctx, "foo"))
}

func TestNilClientIsInert(t *testing.T) {
	var c *till.Client
	ctx := context.Background()
	_, ok := c.Get(ctx, "foo")
	require.False(t, ok)
	c.Set(ctx, "foo", "bar")
	require.False(t, c.Exists(ctx, "foo"))
	require.False(t, c.IsActive(ctx))
}

type testServer struct {
	Host     string
	Port     string
	listener net.Listener
	server   *http.Server
}

func (s *testServer) Close() {
	_ = s.server.Shutdown(context.Background())
	_ = s.listener.Close()
}

func newTillServer(t *testing.T, handler http.Handler) *testServer {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("network disabled for tests: %v", err)
	}
	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	ts := &testServer{Host: host, Port: port, listener: ln, server: srv}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.Logf("test server serve error: %v", err)
		}
	}()
	return ts
}

func closedAddr(t *testing.T) (string, string) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("network disabled for tests: %v", err)
	}
	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())
	return host, port
}
