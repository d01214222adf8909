package netq

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

// settings holds the configuration shared by every protocol client.
// It is populated at construction and read-only afterwards, so clients can
// be used from multiple goroutines without extra locking.
type settings struct {
	// timeout bounds connects and individual read/write operations
	timeout time.Duration

	// logger is used for debug logging
	logger *slog.Logger

	// dialer is used to establish connections
	dialer *net.Dialer

	// proxyURL routes connections through a proxy (socks5, socks5h or http)
	proxyURL string

	// caCertPath points at a PEM bundle used as the TLS root pool
	caCertPath string

	// tlsConfig overrides the derived TLS configuration entirely
	tlsConfig *tls.Config

	// username and password are default credentials for operations
	// that do not receive explicit ones
	username string
	password string

	// progress, when set, is called with the running byte total of
	// file transfers
	progress func(bytesTransferred int64)
}

func defaultSettings() settings {
	return settings{
		timeout: 30 * time.Second,
		dialer:  &net.Dialer{},
		// No-op logger by default
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (s *settings) apply(options []Option) error {
	for _, opt := range options {
		if err := opt(s); err != nil {
			return fmt.Errorf("failed to apply option: %w", err)
		}
	}
	s.dialer.Timeout = s.timeout
	return nil
}

// Option is a functional option for configuring a protocol client.
type Option func(*settings) error

// WithTimeout sets the timeout for connects and operations.
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) error {
		if timeout < 0 {
			return fmt.Errorf("negative timeout: %v", timeout)
		}
		s.timeout = timeout
		return nil
	}
}

// WithLogger enables debug logging using the provided logger.
// All commands and replies will be logged at debug level.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	client, _ := netq.NewFTPClient(netq.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			return fmt.Errorf("nil logger")
		}
		s.logger = logger
		return nil
	}
}

// WithDialer sets a custom net.Dialer for establishing connections.
// This can be used to configure source addresses, keep-alive settings, etc.
func WithDialer(dialer *net.Dialer) Option {
	return func(s *settings) error {
		if dialer == nil {
			return fmt.Errorf("nil dialer")
		}
		s.dialer = dialer
		return nil
	}
}

// WithProxy routes all connections through the given proxy URL.
// Supported schemes: socks5, socks5h (remote DNS resolution), http.
//
// Example:
//
//	client, _ := netq.NewHTTPClient(netq.WithProxy("socks5h://localhost:9050"))
func WithProxy(proxyURL string) Option {
	return func(s *settings) error {
		s.proxyURL = proxyURL
		return nil
	}
}

// WithCACert uses the PEM bundle at path as the root pool for TLS
// connections instead of the system roots.
func WithCACert(path string) Option {
	return func(s *settings) error {
		s.caCertPath = path
		return nil
	}
}

// WithTLSConfig replaces the derived TLS configuration entirely.
// When set, WithCACert is ignored.
func WithTLSConfig(config *tls.Config) Option {
	return func(s *settings) error {
		s.tlsConfig = config
		return nil
	}
}

// WithCredentials sets default credentials used by operations that are not
// given explicit ones: HTTP basic auth, FTP login, SMTP AUTH.
func WithCredentials(username, password string) Option {
	return func(s *settings) error {
		s.username = username
		s.password = password
		return nil
	}
}

// WithProgress registers a callback invoked with the running total of bytes
// moved during file uploads and downloads.
func WithProgress(callback func(bytesTransferred int64)) Option {
	return func(s *settings) error {
		s.progress = callback
		return nil
	}
}
