package utils

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// PingService dials the host of serviceURL, using the scheme's default port when none is given
func PingService(serviceURL string, timeout time.Duration) error {
	parsed, err := url.Parse(serviceURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("invalid URL %q: missing host", serviceURL)
	}

	port := parsed.Port()
	if port == "" {
		port = defaultPorts[parsed.Scheme]
		if port == "" {
			port = "80"
		}
	}

	address := net.JoinHostPort(parsed.Hostname(), port)
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn.Close()
}

var defaultPorts = map[string]string{
	"http":     "80",
	"https":    "443",
	"redis":    "6379",
	"rediss":   "6379",
	"postgres": "5432",
	"mysql":    "3306",
}

// PingAuthorizer checks if the Authorizer service is reachable
func PingAuthorizer(authzURL string) error {
	return PingService(authzURL, 1500*time.Millisecond)
}
