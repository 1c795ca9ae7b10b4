// Package sandbox implements a local stand-in for a Till server. It speaks
// the same object protocol as Till so clients can be exercised end to end
// without a real deployment.
package sandbox

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tillcache/till_sdk_go/pkg/till"
	"github.com/tillcache/till_sdk_go/pkg/till/mock"
)

// maxValueBytes bounds the request body accepted for a single object.
const maxValueBytes = 32 << 20

// Store holds sandbox objects. *mock.Mock and *MemcacheStore implement it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value, lifespan string) error
}

// Option configures the sandbox handler.
type Option func(*server)

// WithLatency delays every request by d before it is handled.
func WithLatency(d time.Duration) Option {
	return func(s *server) {
		s.latency = d
	}
}

// WithFailures enables random failure injection.
func WithFailures(cfg FailConfig) Option {
	return func(s *server) {
		s.fail = cfg
	}
}

// WithLogger sets the request logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *server) {
		if l != nil {
			s.log = l
		}
	}
}

type server struct {
	store   Store
	latency time.Duration
	fail    FailConfig
	log     logrus.FieldLogger
	roll    func() float64
}

// NewHandler returns an http.Handler serving the Till object protocol from store.
func NewHandler(store Store, opts ...Option) http.Handler {
	s := &server{
		store: store,
		log:   logrus.StandardLogger(),
		roll:  rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.SkipClean(true)
	r.Use(s.logRequests, s.injectFaults)
	r.HandleFunc(till.ObjectPathPrefix, s.handleMissingKey)
	r.HandleFunc(till.ObjectPathPrefix+"{key:.+}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc(till.ObjectPathPrefix+"{key:.+}", s.handleSet).Methods(http.MethodPost)
	return r
}

// handleMissingKey answers the empty-key request Till clients use as a
// liveness check.
func (s *server) handleMissingKey(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "object key is required", http.StatusBadRequest)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	value, ok, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !ok {
		http.Error(w, "object not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, value)
}

func (s *server) handleSet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValueBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	lifespan := r.Header.Get(till.LifespanHeader)
	if err := s.store.Set(r.Context(), key, string(body), lifespan); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, mock.ErrEmptyKey),
		errors.Is(err, mock.ErrUnknownLifespan),
		errors.Is(err, memcache.ErrMalformedKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("sandbox: store failure")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			timer := time.NewTimer(s.latency)
			select {
			case <-r.Context().Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if s.fail.Rate > 0 && s.roll() < s.fail.Rate {
			status := s.fail.Code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			http.Error(w, "failure injected", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("sandbox: request")
	})
}
