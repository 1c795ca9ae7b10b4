package sandbox

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FailConfig describes random failure injection: a Rate fraction of requests
// is answered with Code before reaching the store.
type FailConfig struct {
	Rate float64
	Code int
}

// ParseFailConfig parses "rate=<float>,code=<httpStatus>". An empty string
// disables injection.
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return FailConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return FailConfig{}, err
			}
			if val < 0 || val > 1 {
				return FailConfig{}, fmt.Errorf("fail rate %v outside [0,1]", val)
			}
			cfg.Rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return FailConfig{}, err
			}
			cfg.Code = val
		default:
			return FailConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}

// ParseLifespans parses "name=duration,..." into a lifespan table, e.g.
// "default=24h,short=30s". A duration of 0 means the entry never expires.
func ParseLifespans(raw string) (map[string]time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[string]time.Duration)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 || strings.TrimSpace(keyVal[0]) == "" {
			return nil, fmt.Errorf("invalid lifespan segment %q", part)
		}
		d, err := time.ParseDuration(strings.TrimSpace(keyVal[1]))
		if err != nil {
			return nil, fmt.Errorf("lifespan %q: %w", keyVal[0], err)
		}
		if d < 0 {
			return nil, fmt.Errorf("lifespan %q must not be negative", keyVal[0])
		}
		out[strings.TrimSpace(keyVal[0])] = d
	}
	return out, nil
}
