package till

import (
	"fmt"
	"os"
	"strings"

	"github.com/tillcache/till_sdk_go/internal/devseed"
	"github.com/tillcache/till_sdk_go/pkg/till/mock"
)

const (
	envMode     = "TILL_RUNTIME_MODE"
	envHost     = "TILL_HOST"
	envPort     = "TILL_PORT"
	envMockSeed = "TILL_MOCK_SEED"

	// ModeHTTP is reported when NewFromEnv returns a client backed by a real server.
	ModeHTTP = "http"
	// ModeMock is reported when NewFromEnv returns a client backed by an in-memory store.
	ModeMock = "mock"
	modeAuto = "auto"
)

// NewFromEnv initialises a Client from TILL_* environment variables and
// returns the resolved mode ("http" or "mock"). Unset host and port fall back
// to the package defaults, so the HTTP mode works without any configuration.
func NewFromEnv(opts ...Option) (client *Client, mode string, err error) {
	mode = strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	host := strings.TrimSpace(os.Getenv(envHost))
	port := strings.TrimSpace(os.Getenv(envPort))

	switch mode {
	case "", modeAuto, ModeHTTP:
		return New(host, port, opts...), ModeHTTP, nil
	case ModeMock:
		return newMockClient(host, port, opts)
	default:
		return nil, "", fmt.Errorf("till: unsupported %s value %q", envMode, mode)
	}
}

func newMockClient(host, port string, opts []Option) (*Client, string, error) {
	store := mock.New()
	if path := strings.TrimSpace(os.Getenv(envMockSeed)); path != "" {
		entries, err := devseed.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("till: load mock seed: %w", err)
		}
		if err := store.Seed(entries); err != nil {
			return nil, "", fmt.Errorf("till: apply mock seed: %w", err)
		}
	}
	return NewWithBackend(Config{Host: host, Port: port}, store.Backend(), opts...), ModeMock, nil
}
