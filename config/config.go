// Package config loads settings for the example programs from .env files
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the programs read.
type Config struct {
	PeerName        string
	RemotePeer      string
	STUNServer      string
	SignalingServer string
	Host            string
	Port            int // 0 lets each program pick its own default
	LogLevel        string

	ExchangeWindow    time.Duration
	ProbeTimeout      time.Duration
	DiscoveryTimeout  time.Duration
	KeepaliveInterval time.Duration
	MaxWaiting        int
}

// ErrInvalidValue is wrapped by every parse failure.
var ErrInvalidValue = errors.New("config: invalid value")

// Load reads the given .env files (".env" when none is given; missing
// files are skipped) into the environment without overriding variables
// that are already set, then builds a Config from the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		PeerName:          r.str("PEER_NAME", "alice"),
		STUNServer:        r.str("STUN_SERVER", "172.20.0.10:3478"),
		SignalingServer:   r.str("SIGNALING_SERVER", "172.20.0.30:8080"),
		Host:              r.str("HOST", "0.0.0.0"),
		Port:              r.integer("PORT", 0),
		LogLevel:          strings.ToLower(r.str("LOG_LEVEL", "info")),
		ExchangeWindow:    r.duration("EXCHANGE_WINDOW", 10*time.Second),
		ProbeTimeout:      r.duration("PROBE_TIMEOUT", 2*time.Second),
		DiscoveryTimeout:  r.duration("DISCOVERY_TIMEOUT", 5*time.Second),
		KeepaliveInterval: r.duration("KEEPALIVE_INTERVAL", 30*time.Second),
		MaxWaiting:        r.integer("MAX_WAITING", 3),
	}

	remote := "alice"
	if cfg.PeerName == "alice" {
		remote = "bob"
	}
	cfg.RemotePeer = r.str("REMOTE_PEER", remote)

	if cfg.Port < 0 || cfg.Port > 65535 {
		r.fail("PORT", strconv.Itoa(cfg.Port))
	}
	if cfg.MaxWaiting < 1 {
		r.fail("MAX_WAITING", strconv.Itoa(cfg.MaxWaiting))
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		r.errs = append(r.errs, err)
	}

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr joins Host with Port, or with fallback when Port is unset.
func (c Config) Addr(fallback int) string {
	port := c.Port
	if port == 0 {
		port = fallback
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v)
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.fail(key, v)
		return def
	}
	return d
}

func (r *reader) fail(key, v string) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
}
