package netq

import "testing"

func TestNewTorClient(t *testing.T) {
	c, err := NewTorClient()
	if err != nil {
		t.Fatalf("NewTorClient: %v", err)
	}
	if c.proxyURL != "socks5h://localhost:9050" {
		t.Errorf("proxyURL = %q, want the default Tor SOCKS endpoint", c.proxyURL)
	}
	if c.checkURL != defaultTorCheckURL {
		t.Errorf("checkURL = %q", c.checkURL)
	}
}

func TestNewTorClientAt(t *testing.T) {
	c, err := NewTorClientAt("localhost:9150")
	if err != nil {
		t.Fatalf("NewTorClientAt: %v", err)
	}
	if c.proxyURL != "socks5h://localhost:9150" {
		t.Errorf("proxyURL = %q", c.proxyURL)
	}
}

func TestNewTorClientFromConfig(t *testing.T) {
	cfg := LoadConfig()
	cfg.Tor.SocksAddr = "localhost:9250"
	cfg.Tor.CheckURL = "https://check.example.org"
	// A generic proxy in the config must not displace the Tor tunnel.
	cfg.Proxy = "http://corporate-proxy:8080"

	c, err := NewTorClientFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewTorClientFromConfig: %v", err)
	}
	if c.proxyURL != "socks5h://localhost:9250" {
		t.Errorf("proxyURL = %q, want the Tor tunnel", c.proxyURL)
	}
	if c.checkURL != "https://check.example.org" {
		t.Errorf("checkURL = %q", c.checkURL)
	}
}
