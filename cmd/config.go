package cmd

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration values for commands.
type Config struct {
	BindHost            string
	Port                string
	MaxSessions         int64
	AcceptQueueTimeout  time.Duration
	HeaderReadTimeout   time.Duration
	ConnectTimeout      time.Duration
	UpstreamReadTimeout time.Duration
	ShutdownGracePeriod time.Duration
	MaxHeaderBytes      int
	MaxHeaderLineBytes  int
	ProxyProtocol       bool
	DenyMethods         []string
	CheckTimeout        time.Duration
}

// BindAddress returns the host:port the proxy should listen on.
func (c *Config) BindAddress() string {
	return net.JoinHostPort(c.BindHost, c.Port)
}

// GetConfigFromEnvironment creates Config object based on the shell environment.
func GetConfigFromEnvironment() *Config {
	return &Config{
		BindHost:            env("BIND_HOST", ""),
		Port:                env("PORT", "8888"),
		MaxSessions:         envInt("MAX_SESSIONS", 256),
		AcceptQueueTimeout:  envDuration("ACCEPT_QUEUE_TIMEOUT", 100*time.Millisecond),
		HeaderReadTimeout:   envDuration("HEADER_READ_TIMEOUT", 10*time.Second),
		ConnectTimeout:      envDuration("CONNECT_TIMEOUT", 10*time.Second),
		UpstreamReadTimeout: envDuration("UPSTREAM_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDuration("SHUTDOWN_GRACE_PERIOD", 15*time.Second),
		MaxHeaderBytes:      int(envInt("MAX_HEADER_BYTES", 8192)),
		MaxHeaderLineBytes:  int(envInt("MAX_HEADER_LINE_BYTES", 4096)),
		ProxyProtocol:       envBool("PROXY_PROTOCOL", false),
		DenyMethods:         envList("DENY_METHODS"),
		CheckTimeout:        envDuration("CHECK_TIMEOUT", 500*time.Millisecond),
	}
}

func env(key string, def string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return def
}

func envInt(key string, def int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		i, _ := strconv.ParseInt(value, 10, 64)
		return i
	}

	return def
}

func envBool(key string, def bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, _ := strconv.ParseBool(value)
		return b
	}

	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return def
		}
		return d
	}

	return def
}

func envList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
