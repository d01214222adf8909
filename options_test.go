package netq

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	s := defaultSettings()
	if s.timeout != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", s.timeout)
	}
	if s.logger == nil {
		t.Error("default logger is nil; want a no-op logger")
	}
	if s.dialer == nil {
		t.Error("default dialer is nil")
	}
}

func TestOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dialer := &net.Dialer{}

	client, err := NewHTTPClient(
		WithTimeout(7*time.Second),
		WithLogger(logger),
		WithDialer(dialer),
		WithProxy("socks5://localhost:1080"),
		WithCACert("/etc/ssl/custom.pem"),
		WithCredentials("alice", "secret"),
	)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	if client.timeout != 7*time.Second {
		t.Errorf("timeout = %v", client.timeout)
	}
	if client.logger != logger {
		t.Error("logger not applied")
	}
	if client.dialer != dialer {
		t.Error("dialer not applied")
	}
	if client.dialer.Timeout != 7*time.Second {
		t.Errorf("dialer timeout = %v, want the client timeout", client.dialer.Timeout)
	}
	if client.proxyURL != "socks5://localhost:1080" {
		t.Errorf("proxyURL = %q", client.proxyURL)
	}
	if client.caCertPath != "/etc/ssl/custom.pem" {
		t.Errorf("caCertPath = %q", client.caCertPath)
	}
	if client.username != "alice" || client.password != "secret" {
		t.Errorf("credentials = %q/%q", client.username, client.password)
	}
}

func TestOptionValidation(t *testing.T) {
	if _, err := NewHTTPClient(WithTimeout(-time.Second)); err == nil {
		t.Error("negative timeout accepted")
	}
	if _, err := NewFTPClient(WithLogger(nil)); err == nil {
		t.Error("nil logger accepted")
	}
	if _, err := NewSMTPClient(WithDialer(nil)); err == nil {
		t.Error("nil dialer accepted")
	}
}
