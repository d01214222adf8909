package netq

import (
	"bufio"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// maxRedirects bounds the Location-following chain.
const maxRedirects = 10

// userAgent identifies the client in outgoing requests.
const userAgent = "netq/1.0"

// HTTPClient issues HTTP/1.1 requests over its own exchange loop, feeding
// header lines and body chunks through a messageSink into a structured
// HTTPResponse. Every operation returns a response; transport failures are
// reported in ErrorMessage rather than as returned errors.
type HTTPClient struct {
	settings
}

// NewHTTPClient creates an HTTP client.
//
// Example:
//
//	client, err := netq.NewHTTPClient(netq.WithTimeout(10 * time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp := client.Get("https://example.com", nil)
//	if !resp.Ok() {
//	    log.Fatal(resp.Err())
//	}
func NewHTTPClient(options ...Option) (*HTTPClient, error) {
	c := &HTTPClient{settings: defaultSettings()}
	if err := c.settings.apply(options); err != nil {
		return nil, err
	}
	return c, nil
}

// RequestOptions carries per-request overrides. A nil *RequestOptions is
// valid and means "client defaults only".
type RequestOptions struct {
	// Header entries are sent verbatim in addition to the standard ones.
	Header map[string]string

	// Cookies are assembled into a single Cookie header ("k=v; k2=v2").
	Cookies map[string]string

	// Proxy overrides the client's proxy for this request.
	Proxy string

	// Username and Password enable HTTP basic authentication.
	Username string
	Password string
}

// Get performs a GET request and returns the parsed response.
// Redirects are followed; the final hop's status line wins.
func (c *HTTPClient) Get(rawURL string, opts *RequestOptions) *HTTPResponse {
	resp := newHTTPResponse()
	c.do(resp, &bodyBuffer{resp: resp}, "GET", rawURL, nil, "", opts, c.timeout)
	return resp
}

// Post performs a multipart/form-data POST with one part per text field
// and one part per file field. A file that cannot be read is reported
// before any network attempt.
func (c *HTTPClient) Post(rawURL string, form, files map[string]string, opts *RequestOptions) *HTTPResponse {
	resp := newHTTPResponse()

	body, contentType, err := buildMultipartForm(form, files)
	if err != nil {
		resp.ErrorMessage = err.Error()
		return resp
	}

	c.do(resp, &bodyBuffer{resp: resp}, "POST", rawURL, body, contentType, opts, c.timeout)
	return resp
}

// Ping issues a HEAD-style timing probe with a short fixed timeout.
// On success Content holds the round-trip time as "<n> ms"; on failure
// Status is 0 and ErrorMessage describes the problem.
func (c *HTTPClient) Ping(rawURL string, opts *RequestOptions) *HTTPResponse {
	const probeTimeout = 5 * time.Second

	resp := newHTTPResponse()
	start := time.Now()
	c.do(resp, &bodyDiscard{resp: resp}, "HEAD", rawURL, nil, "", opts, probeTimeout)
	elapsed := time.Since(start)

	if resp.Ok() {
		resp.Content = []byte(fmt.Sprintf("%d ms", elapsed.Milliseconds()))
	} else {
		resp.Status = 0
	}
	return resp
}

// DownloadFile performs a GET request and streams the body into outPath.
// Failure to create the local file is reported before any network attempt.
// If a read error interrupts the body the response carries both the status
// obtained so far and the error message.
func (c *HTTPClient) DownloadFile(rawURL, outPath string, opts *RequestOptions) *HTTPResponse {
	resp := newHTTPResponse()

	f, err := os.Create(outPath)
	if err != nil {
		resp.ErrorMessage = fmt.Sprintf("unable to open output file: %v", err)
		return resp
	}
	defer f.Close()

	c.do(resp, &bodyWriter{resp: resp, w: c.meterWriter(f)}, "GET", rawURL, nil, "", opts, c.timeout)
	return resp
}

// do runs the request/response exchange, following redirects. Any
// transport failure lands in resp.ErrorMessage; parse-level anomalies in
// the header stream never abort the exchange.
func (c *HTTPClient) do(resp *HTTPResponse, sink messageSink, method, rawURL string, body []byte, contentType string, opts *RequestOptions, timeout time.Duration) {
	eff := c.settings
	eff.timeout = timeout
	if opts != nil && opts.Proxy != "" {
		eff.proxyURL = opts.Proxy
	}

	for hop := 0; ; hop++ {
		// A hop must only be followed on its own Location, never on a
		// stale one left over from an earlier hop.
		delete(resp.Header, "Location")

		location, err := c.exchange(resp, sink, &eff, method, rawURL, body, contentType, opts)
		if err != nil {
			resp.ErrorMessage = err.Error()
			return
		}
		if location == "" {
			return
		}
		if hop == maxRedirects {
			resp.ErrorMessage = "too many redirects"
			return
		}

		// 303, and 301/302 after a POST, continue as a bodyless GET.
		if resp.Status == 303 || (method == "POST" && resp.Status != 307 && resp.Status != 308) {
			method = "GET"
			body = nil
			contentType = ""
		}
		rawURL = location
	}
}

// exchange performs one hop. It returns the redirect target when the
// response asks for one, or "" when this hop is final.
func (c *HTTPClient) exchange(resp *HTTPResponse, sink messageSink, eff *settings, method, rawURL string, body []byte, contentType string, opts *RequestOptions) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	var port string
	switch strings.ToLower(u.Scheme) {
	case "http":
		port = "80"
	case "https":
		port = "443"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Port() != "" {
		port = u.Port()
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	httpProxy := false
	if eff.proxyURL != "" {
		if pu, perr := url.Parse(eff.proxyURL); perr == nil && strings.ToLower(pu.Scheme) == "http" {
			httpProxy = true
		}
	}

	conn, err := eff.dial(addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if httpProxy && u.Scheme == "https" {
		if err := proxyConnect(conn, addr, eff.timeout); err != nil {
			return "", err
		}
	}

	if u.Scheme == "https" {
		cfg, err := eff.tlsClientConfig(u.Hostname())
		if err != nil {
			return "", err
		}
		tlsConn := tls.Client(conn, cfg)
		if eff.timeout > 0 {
			if err := conn.SetDeadline(time.Now().Add(eff.timeout)); err != nil {
				return "", fmt.Errorf("failed to set deadline: %w", err)
			}
		}
		if err := tlsConn.Handshake(); err != nil {
			return "", fmt.Errorf("TLS handshake failed: %w", err)
		}
		conn = tlsConn
	}

	dconn := &deadlineConn{Conn: conn, timeout: eff.timeout}

	target := u.RequestURI()
	if target == "" {
		target = "/"
	}
	// A plain http proxy without CONNECT gets the absolute form.
	if httpProxy && u.Scheme == "http" {
		target = rawURL
	}

	if err := writeRequest(dconn, method, target, u.Host, body, contentType, opts, eff); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	c.logger.Debug("http request sent", "method", method, "url", rawURL)

	reader := bufio.NewReader(dconn)
	if err := readHeaderLines(reader, sink); err != nil {
		return "", err
	}

	c.logger.Debug("http response", "status", resp.Status, "reason", resp.StatusText)

	if location, ok := resp.Header["Location"]; ok && isRedirect(resp.Status) {
		ref, err := url.Parse(location)
		if err == nil {
			return u.ResolveReference(ref).String(), nil
		}
	}

	if method == "HEAD" || resp.Status == 204 || resp.Status == 304 {
		return "", nil
	}

	return "", copyBody(reader, sink, resp)
}

// proxyConnect establishes a CONNECT tunnel through an http proxy.
func proxyConnect(conn net.Conn, addr string, timeout time.Duration) error {
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	if _, err := fmt.Fprintf(conn, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", addr, addr); err != nil {
		return fmt.Errorf("proxy CONNECT failed: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("proxy CONNECT failed: %w", err)
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[1], "2") {
		return fmt.Errorf("proxy refused CONNECT: %s", strings.TrimSpace(line))
	}

	// Drain the proxy's header block.
	for {
		l, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("proxy CONNECT failed: %w", err)
		}
		if strings.TrimRight(l, "\r\n") == "" {
			return nil
		}
	}
}

// writeRequest emits the request line, headers and body.
func writeRequest(w io.Writer, method, target, host string, body []byte, contentType string, opts *RequestOptions, eff *settings) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, target)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("Accept: */*\r\n")
	b.WriteString("Connection: close\r\n")

	username, password := eff.username, eff.password
	if opts != nil && opts.Username != "" {
		username, password = opts.Username, opts.Password
	}
	if username != "" && password != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		fmt.Fprintf(&b, "Authorization: Basic %s\r\n", cred)
	}

	if opts != nil {
		for _, k := range sortedKeys(opts.Header) {
			fmt.Fprintf(&b, "%s: %s\r\n", k, opts.Header[k])
		}
		if len(opts.Cookies) > 0 {
			pairs := make([]string, 0, len(opts.Cookies))
			for _, k := range sortedKeys(opts.Cookies) {
				pairs = append(pairs, k+"="+opts.Cookies[k])
			}
			fmt.Fprintf(&b, "Cookie: %s\r\n", strings.Join(pairs, "; "))
		}
	}

	if body != nil {
		if contentType != "" {
			fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
		}
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if body != nil {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// readHeaderLines feeds raw header lines, status line included, into the
// sink one at a time until the blank separator line.
func readHeaderLines(reader *bufio.Reader, sink messageSink) error {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read response header: %w", err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			return nil
		}
		sink.OnHeaderLine(line)
	}
}

// copyBody decodes and streams the body into the sink. A mid-body read
// error or a body cut short of its declared length is recorded on the
// response; the status obtained so far is preserved.
func copyBody(reader *bufio.Reader, sink messageSink, resp *HTTPResponse) error {
	var src io.Reader = reader
	declared := int64(-1)

	if strings.Contains(strings.ToLower(resp.Header["Transfer-Encoding"]), "chunked") {
		src = newChunkedReader(reader)
	} else if cl, ok := resp.Header["Content-Length"]; ok {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err == nil && n >= 0 {
			declared = n
			src = io.LimitReader(reader, n)
		}
	}

	var total int64
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if serr := sink.OnBody(buf[:n]); serr != nil {
				return fmt.Errorf("failed to store body: %w", serr)
			}
		}
		if err == io.EOF {
			if declared >= 0 && total < declared {
				return fmt.Errorf("truncated body: got %d of %d bytes", total, declared)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
	}
}

func isRedirect(status int) bool {
	switch status {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}
