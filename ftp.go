package netq

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

// FTPClient performs FTP operations. Each operation takes a full ftp://
// URL, dials a fresh session, logs in, runs the transfer and quits; no
// connection state is kept between calls. Operations on sftp:// URLs are
// routed to the SSH-based implementation transparently.
type FTPClient struct {
	settings
}

// NewFTPClient creates an FTP client.
func NewFTPClient(options ...Option) (*FTPClient, error) {
	c := &FTPClient{settings: defaultSettings()}
	if err := c.settings.apply(options); err != nil {
		return nil, err
	}
	return c, nil
}

// ftpSession is one logged-in control connection plus the metadata needed
// to open passive data connections.
type ftpSession struct {
	cc   *controlConn
	s    *settings
	host string
}

// connect dials the URL's host, reads the greeting, logs in and switches
// to binary mode. Empty credentials fall back to the client's defaults and
// then to anonymous.
func (c *FTPClient) connect(rawURL, username, password string) (*ftpSession, string, error) {
	addr, path, _, err := splitEndpoint(rawURL, "21")
	if err != nil {
		return nil, "", err
	}

	if username == "" {
		username, password = c.username, c.password
	}
	if username == "" {
		username, password = "anonymous", "anonymous"
	}

	conn, err := c.dial(addr)
	if err != nil {
		return nil, "", fmt.Errorf("connect failed: %w", err)
	}

	// SplitHostPort strips IPv6 brackets, so JoinHostPort can re-add
	// them when dialing the data port.
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	sess := &ftpSession{
		cc:   newControlConn(conn, c.timeout, c.logger),
		s:    &c.settings,
		host: host,
	}

	greeting, err := sess.cc.read()
	if err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("failed to read greeting: %w", err)
	}
	if greeting.Code != 220 {
		conn.Close()
		return nil, "", &ProtocolError{Op: "greeting", Response: greeting.Message, Code: greeting.Code}
	}

	reply, err := sess.cc.cmd("USER", username)
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	switch reply.Code {
	case 331:
		if _, err := sess.cc.expect(230, "PASS", password); err != nil {
			conn.Close()
			return nil, "", err
		}
	case 230:
		// Logged in without a password.
	default:
		conn.Close()
		return nil, "", &ProtocolError{Op: "USER", Response: reply.Message, Code: reply.Code}
	}

	if _, err := sess.cc.expect(200, "TYPE", "I"); err != nil {
		conn.Close()
		return nil, "", err
	}

	return sess, path, nil
}

func (sess *ftpSession) quit() {
	// Best effort; the server may already have dropped us.
	_, _ = sess.cc.cmd("QUIT")
	sess.cc.close()
}

// openDataConn enters passive mode (EPSV, with PASV as fallback) and dials
// the announced data port through the same dialer as the control channel.
func (sess *ftpSession) openDataConn() (net.Conn, error) {
	if reply, err := sess.cc.cmd("EPSV"); err == nil && reply.Code == 229 {
		port, perr := parseEpsvReply(reply.Message)
		if perr == nil {
			return sess.s.dial(net.JoinHostPort(sess.host, strconv.Itoa(port)))
		}
	}

	reply, err := sess.cc.expect(227, "PASV")
	if err != nil {
		return nil, err
	}

	host, port, err := parsePasvReply(reply.Message)
	if err != nil {
		return nil, err
	}

	// Some servers behind NAT announce a private address; prefer the host
	// we already reached on the control channel when it differs.
	if host != sess.host {
		host = sess.host
	}

	return sess.s.dial(net.JoinHostPort(host, strconv.Itoa(port)))
}

// parseEpsvReply extracts the port from "Entering Extended Passive Mode
// (|||6446|)".
func parseEpsvReply(msg string) (int, error) {
	start := strings.Index(msg, "(|||")
	end := strings.LastIndexByte(msg, '|')
	if start == -1 || end <= start+4 {
		return 0, fmt.Errorf("malformed EPSV reply: %q", msg)
	}

	port, err := strconv.Atoi(msg[start+4 : end])
	if err != nil {
		return 0, fmt.Errorf("malformed EPSV port: %q", msg)
	}
	return port, nil
}

// parsePasvReply extracts host and port from "Entering Passive Mode
// (h1,h2,h3,h4,p1,p2)".
func parsePasvReply(msg string) (string, int, error) {
	start := strings.IndexByte(msg, '(')
	end := strings.IndexByte(msg, ')')
	if start == -1 || end <= start {
		return "", 0, fmt.Errorf("malformed PASV reply: %q", msg)
	}

	parts := strings.Split(msg[start+1:end], ",")
	if len(parts) != 6 {
		return "", 0, fmt.Errorf("malformed PASV reply: %q", msg)
	}

	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", 0, fmt.Errorf("malformed PASV reply: %q", msg)
		}
		nums[i] = n
	}

	host := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
	return host, nums[4]<<8 | nums[5], nil
}

// transfer runs one data-channel command: it opens the data connection,
// issues the command, moves the bytes and waits for the completion reply.
// The returned reply is the final one (usually 226).
func (sess *ftpSession) transfer(verb, path string, move func(conn net.Conn) error) (*Reply, error) {
	data, err := sess.openDataConn()
	if err != nil {
		return nil, fmt.Errorf("failed to open data connection: %w", err)
	}

	var reply *Reply
	if path == "" {
		reply, err = sess.cc.cmd(verb)
	} else {
		reply, err = sess.cc.cmd(verb, path)
	}
	if err != nil {
		data.Close()
		return nil, err
	}
	if reply.Code >= 400 {
		data.Close()
		return reply, &ProtocolError{Op: verb, Response: reply.Message, Code: reply.Code}
	}

	moveErr := move(&deadlineConn{Conn: data, timeout: sess.cc.timeout})
	data.Close()

	final, err := sess.cc.read()
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer reply: %w", err)
	}
	if moveErr != nil {
		return final, moveErr
	}
	if !final.Is2xx() {
		return final, &ProtocolError{Op: verb, Response: final.Message, Code: final.Code}
	}
	return final, nil
}

// retrieve downloads path into w.
func (sess *ftpSession) retrieve(path string, w io.Writer) (*Reply, error) {
	return sess.transfer("RETR", path, func(conn net.Conn) error {
		if _, err := io.Copy(w, conn); err != nil {
			return fmt.Errorf("failed to read file data: %w", err)
		}
		return nil
	})
}

// store uploads r to path.
func (sess *ftpSession) store(path string, r io.Reader) (*Reply, error) {
	return sess.transfer("STOR", path, func(conn net.Conn) error {
		if _, err := io.Copy(conn, r); err != nil {
			return fmt.Errorf("failed to send file data: %w", err)
		}
		return nil
	})
}

// listRaw fetches directory output for path with the given listing verb
// (NLST for bare names, LIST for long format).
func (sess *ftpSession) listRaw(verb, path string) (string, *Reply, error) {
	var b strings.Builder
	reply, err := sess.transfer(verb, path, func(conn net.Conn) error {
		if _, err := io.Copy(&b, conn); err != nil {
			return fmt.Errorf("failed to read listing: %w", err)
		}
		return nil
	})
	return b.String(), reply, err
}

// fail records err on the response, lifting the reply code out of protocol
// errors so callers can still see what the server said.
func (r *FTPResponse) fail(err error) *FTPResponse {
	r.ErrorMessage = err.Error()
	var pe *ProtocolError
	if errors.As(err, &pe) {
		r.Code = pe.Code
	}
	return r
}

// Upload stores the local file at the URL's path.
// A local file that cannot be opened is reported before any network attempt.
func (c *FTPClient) Upload(localPath, rawURL string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpUpload(localPath, rawURL, username, password)
	}

	resp := &FTPResponse{}

	f, err := os.Open(localPath)
	if err != nil {
		resp.ErrorMessage = fmt.Sprintf("unable to open local file: %v", err)
		return resp
	}
	defer f.Close()

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	reply, err := sess.store(path, c.meterReader(f))
	if reply != nil {
		resp.Code = reply.Code
	}
	if err != nil {
		return resp.fail(err)
	}
	return resp
}

// DownloadFile retrieves the URL's path into the local file.
// Failure to create the local file is reported before any network attempt.
func (c *FTPClient) DownloadFile(rawURL, localPath string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpDownload(rawURL, localPath, username, password)
	}

	resp := &FTPResponse{}

	f, err := os.Create(localPath)
	if err != nil {
		resp.ErrorMessage = fmt.Sprintf("unable to open output file: %v", err)
		return resp
	}
	defer f.Close()

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	reply, err := sess.retrieve(path, c.meterWriter(f))
	if reply != nil {
		resp.Code = reply.Code
	}
	if err != nil {
		return resp.fail(err)
	}
	return resp
}

// Read retrieves the URL's path into memory and returns it in Content.
func (c *FTPClient) Read(rawURL string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpRead(rawURL, username, password)
	}

	resp := &FTPResponse{}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	var b strings.Builder
	reply, err := sess.retrieve(path, &b)
	if reply != nil {
		resp.Code = reply.Code
	}
	if err != nil {
		return resp.fail(err)
	}
	resp.Content = b.String()
	return resp
}

// Remove deletes the file at the URL's path.
func (c *FTPClient) Remove(rawURL string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpRemove(rawURL, username, password)
	}

	resp := &FTPResponse{}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	reply, err := sess.cc.expect2xx("DELE", path)
	if reply != nil {
		resp.Code = reply.Code
	}
	if err != nil {
		return resp.fail(err)
	}
	return resp
}

// List returns the entry names of the directory at the URL's path, one per
// List element, in server order.
func (c *FTPClient) List(rawURL string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpList(rawURL, username, password)
	}

	resp := &FTPResponse{}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	text, reply, err := sess.listRaw("NLST", path)
	if reply != nil {
		resp.Code = reply.Code
	}
	if err != nil {
		return resp.fail(err)
	}

	resp.Content = text
	for _, line := range splitListingLines(text) {
		resp.List = append(resp.List, lastPathSegment(line))
	}
	return resp
}

// Move renames the file at the URL's path to destPath on the same server.
func (c *FTPClient) Move(rawURL, destPath string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpMove(rawURL, destPath, username, password)
	}

	resp := &FTPResponse{}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	if reply, err := sess.cc.expect(350, "RNFR", path); err != nil {
		if reply != nil {
			resp.Code = reply.Code
		}
		return resp.fail(err)
	}

	reply, err := sess.cc.expect2xx("RNTO", destPath)
	if reply != nil {
		resp.Code = reply.Code
	}
	if err != nil {
		return resp.fail(err)
	}
	return resp
}

// Create makes a directory at the URL's path.
func (c *FTPClient) Create(rawURL string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpCreate(rawURL, username, password)
	}

	resp := &FTPResponse{}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	reply, err := sess.cc.expect2xx("MKD", path)
	if reply != nil {
		resp.Code = reply.Code
	}
	if err != nil {
		return resp.fail(err)
	}
	return resp
}

// Exists reports whether the URL's path names an existing file or
// directory. It asks SIZE first and falls back to CWD for directories,
// since many servers reject SIZE on anything but a plain file.
func (c *FTPClient) Exists(rawURL string, username, password string) bool {
	if isSFTP(rawURL) {
		return c.sftpExists(rawURL, username, password)
	}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return false
	}
	defer sess.quit()

	if reply, err := sess.cc.cmd("SIZE", path); err == nil && reply.Is2xx() {
		return true
	}

	reply, err := sess.cc.cmd("CWD", path)
	return err == nil && reply.Is2xx()
}

// IsFile reports whether the URL's path names a plain file.
func (c *FTPClient) IsFile(rawURL string, username, password string) bool {
	if isSFTP(rawURL) {
		return c.sftpIsFile(rawURL, username, password)
	}
	info := c.FileInfo(rawURL, username, password)
	return info.Ok() && strings.HasPrefix(info.Content, "-")
}

// IsFolder reports whether the URL's path names a directory.
func (c *FTPClient) IsFolder(rawURL string, username, password string) bool {
	if isSFTP(rawURL) {
		return c.sftpIsFolder(rawURL, username, password)
	}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return false
	}
	defer sess.quit()

	reply, err := sess.cc.cmd("CWD", path)
	return err == nil && reply.Is2xx()
}

// FileInfo returns the long-format listing line for the file at the URL's
// path in Content.
func (c *FTPClient) FileInfo(rawURL string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpInfo(rawURL, username, password)
	}

	resp := &FTPResponse{}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	text, reply, err := sess.listRaw("LIST", path)
	if reply != nil {
		resp.Code = reply.Code
	}
	if err != nil {
		return resp.fail(err)
	}

	lines := splitListingLines(text)
	if len(lines) == 0 {
		resp.ErrorMessage = fmt.Sprintf("no such file: %s", path)
		return resp
	}
	resp.Content = lines[0]
	return resp
}

// FolderInfo returns the long-format listing of the directory at the URL's
// path: the raw text in Content and one line per List element.
func (c *FTPClient) FolderInfo(rawURL string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpInfo(rawURL, username, password)
	}

	resp := &FTPResponse{}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	text, reply, err := sess.listRaw("LIST", path)
	if reply != nil {
		resp.Code = reply.Code
	}
	if err != nil {
		return resp.fail(err)
	}

	resp.Content = text
	resp.List = splitListingLines(text)
	return resp
}

func isSFTP(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(rawURL), "sftp://")
}
