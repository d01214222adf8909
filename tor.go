package netq

// defaultTorSocksAddr is where a locally running Tor daemon listens for
// SOCKS connections.
const defaultTorSocksAddr = "localhost:9050"

// defaultTorCheckURL is the exit-check endpoint probed by IsTorRunning.
const defaultTorCheckURL = "https://check.torproject.org"

// TorClient is an HTTPClient pre-routed through a local Tor SOCKS
// endpoint. The socks5h scheme makes Tor resolve hostnames remotely, so
// DNS queries never leave the tunnel and .onion addresses work.
type TorClient struct {
	HTTPClient

	checkURL string
}

// NewTorClient creates an HTTP client that tunnels every request through
// Tor. Options apply on top of the Tor routing; WithProxy would override
// it and should not be passed here.
func NewTorClient(options ...Option) (*TorClient, error) {
	return NewTorClientAt(defaultTorSocksAddr, options...)
}

// NewTorClientAt is NewTorClient with an explicit SOCKS endpoint, for
// daemons listening somewhere other than the default port.
func NewTorClientAt(socksAddr string, options ...Option) (*TorClient, error) {
	c := &TorClient{
		HTTPClient: HTTPClient{settings: defaultSettings()},
		checkURL:   defaultTorCheckURL,
	}
	c.proxyURL = "socks5h://" + socksAddr
	if err := c.settings.apply(options); err != nil {
		return nil, err
	}
	return c, nil
}

// NewTorClientFromConfig builds a Tor client from the configuration's Tor
// section: SOCKS endpoint, check URL, and the generic client options.
// A proxy configured in cfg is ignored; the Tor tunnel takes its place.
func NewTorClientFromConfig(cfg *Config, options ...Option) (*TorClient, error) {
	socksAddr := cfg.Tor.SocksAddr
	if socksAddr == "" {
		socksAddr = defaultTorSocksAddr
	}

	c, err := NewTorClientAt(socksAddr, append(cfg.Options(), options...)...)
	if err != nil {
		return nil, err
	}

	c.proxyURL = "socks5h://" + socksAddr
	if cfg.Tor.CheckURL != "" {
		c.checkURL = cfg.Tor.CheckURL
	}
	return c, nil
}

// IsTorRunning probes the exit-check endpoint through the tunnel and
// reports whether it answered with status 200. False means the daemon is
// not reachable or the circuit could not be built.
func (c *TorClient) IsTorRunning() bool {
	resp := c.Ping(c.checkURL, nil)
	return resp.Ok() && resp.Status == 200
}
