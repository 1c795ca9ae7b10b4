package till

import "net"

const (
	// DefaultHost is used when New receives an empty host.
	DefaultHost = "localhost"
	// DefaultPort is used when New receives an empty port.
	DefaultPort = "5632"

	// ObjectPathPrefix is the path under which Till exposes stored objects.
	ObjectPathPrefix = "/api/v1/object/"
	// LifespanHeader selects the server-side expiration policy on writes.
	LifespanHeader = "X-Till-Lifespan"
	// DefaultLifespan is the only lifespan this client sends.
	DefaultLifespan = "default"
)

// Config holds the connection target. It is fixed once the client is built.
type Config struct {
	Host string
	Port string
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == "" {
		c.Port = DefaultPort
	}
	return c
}

// BaseURL renders the scheme and authority requests are sent to.
func (c Config) BaseURL() string {
	return "http://" + net.JoinHostPort(c.Host, c.Port)
}

// ObjectPath returns the request path for key. The key is appended as-is:
// reserved URL characters such as '?' or '#' are not escaped and change how
// the path is interpreted.
func ObjectPath(key string) string {
	return ObjectPathPrefix + key
}
