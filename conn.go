package netq

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// deadlineConn wraps a net.Conn and sets a read/write deadline before every
// operation.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (n int, err error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (n int, err error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// dial establishes a TCP connection to addr, going through the configured
// proxy when one is set. Supported proxy schemes: socks5, socks5h
// (both resolve remotely), and http (used as a plain next-hop; the HTTP
// client issues absolute-form requests or CONNECT through it).
// The connect is bounded by the settings' timeout, so a per-call timeout
// override (the Ping probe) bounds its dial too.
func (s *settings) dial(addr string) (net.Conn, error) {
	dialer := *s.dialer
	dialer.Timeout = s.timeout

	if s.proxyURL == "" {
		return dialer.Dial("tcp", addr)
	}

	u, err := url.Parse(s.proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
		d, err := proxy.SOCKS5("tcp", u.Host, auth, &dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to set up SOCKS proxy: %w", err)
		}
		conn, err := d.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("proxy dial failed: %w", err)
		}
		return conn, nil
	case "http":
		host := u.Host
		if u.Port() == "" {
			host = net.JoinHostPort(u.Hostname(), "8080")
		}
		return dialer.Dial("tcp", host)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}
}

// tlsClientConfig builds the TLS configuration for a connection to
// serverName, loading the configured CA certificate file into the root
// pool when one is set. A missing or malformed CA file is a local
// resource failure reported before any network attempt.
func (s *settings) tlsClientConfig(serverName string) (*tls.Config, error) {
	if s.tlsConfig != nil {
		cfg := s.tlsConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = serverName
		}
		return cfg, nil
	}

	cfg := &tls.Config{ServerName: serverName}
	if s.caCertPath != "" {
		pem, err := os.ReadFile(s.caCertPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", s.caCertPath)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// controlConn is a line-oriented command connection shared by the FTP and
// SMTP clients: commands go out one per line, replies come back through
// readReply. A mutex serializes commands so a session is safe to share
// across goroutines, though operations allocate their own sessions anyway.
type controlConn struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	logger  *slog.Logger
	mu      sync.Mutex
}

func newControlConn(conn net.Conn, timeout time.Duration, logger *slog.Logger) *controlConn {
	return &controlConn{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
		logger:  logger,
	}
}

// read reads a single reply without sending anything, used for greetings
// and transfer-completion codes.
func (cc *controlConn) read() (*Reply, error) {
	if cc.timeout > 0 {
		if err := cc.conn.SetReadDeadline(time.Now().Add(cc.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}
	return readReply(cc.reader)
}

// cmd sends a command and returns the server's reply.
func (cc *controlConn) cmd(verb string, args ...string) (*Reply, error) {
	line := verb
	if len(args) > 0 {
		line = verb + " " + strings.Join(args, " ")
	}

	cc.logger.Debug("command", "cmd", line)

	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.timeout > 0 {
		if err := cc.conn.SetWriteDeadline(time.Now().Add(cc.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if _, err := fmt.Fprintf(cc.conn, "%s\r\n", line); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	if cc.timeout > 0 {
		if err := cc.conn.SetReadDeadline(time.Now().Add(cc.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	reply, err := readReply(cc.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}

	cc.logger.Debug("reply", "code", reply.Code, "message", reply.Message)
	return reply, nil
}

// expect sends a command and verifies the reply code matches.
func (cc *controlConn) expect(code int, verb string, args ...string) (*Reply, error) {
	reply, err := cc.cmd(verb, args...)
	if err != nil {
		return nil, err
	}

	if reply.Code != code {
		return reply, &ProtocolError{
			Op:       verb,
			Response: reply.Message,
			Code:     reply.Code,
		}
	}

	return reply, nil
}

// expect2xx sends a command and verifies the reply is in the 2xx range.
func (cc *controlConn) expect2xx(verb string, args ...string) (*Reply, error) {
	reply, err := cc.cmd(verb, args...)
	if err != nil {
		return nil, err
	}

	if !reply.Is2xx() {
		return reply, &ProtocolError{
			Op:       verb,
			Response: reply.Message,
			Code:     reply.Code,
		}
	}

	return reply, nil
}

func (cc *controlConn) close() error {
	return cc.conn.Close()
}
