package netq

import (
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// SMTPClient submits email through a server given as an smtp:// or
// smtps:// URL. Each send dials a fresh session, runs the dialogue and
// quits. STARTTLS is used when the server advertises it; smtps:// gets
// implicit TLS. Credentials, when present, are sent with AUTH PLAIN.
type SMTPClient struct {
	settings
}

// NewSMTPClient creates an SMTP client.
func NewSMTPClient(options ...Option) (*SMTPClient, error) {
	c := &SMTPClient{settings: defaultSettings()}
	if err := c.settings.apply(options); err != nil {
		return nil, err
	}
	return c, nil
}

// SendMail sends a plain-text email.
func (c *SMTPClient) SendMail(serverURL, from, to, subject, body string) *SMTPResult {
	return c.SendEmail(serverURL, from, to, subject, body, false, nil)
}

// SendMailHTML sends an HTML email.
func (c *SMTPClient) SendMailHTML(serverURL, from, to, subject, body string) *SMTPResult {
	return c.SendEmail(serverURL, from, to, subject, body, true, nil)
}

// SendEmail sends an email with the given body type and attachments.
// Without attachments the message goes out flat (header block, blank line,
// body); with attachments it becomes multipart/mixed with the body part
// first and one base64 part per file. An unreadable attachment is reported
// before any network attempt. Code carries the server's final reply.
func (c *SMTPClient) SendEmail(serverURL, from, to, subject, body string, html bool, files []string) *SMTPResult {
	result := &SMTPResult{}

	var payload []byte
	if len(files) == 0 {
		payload = buildFlatMessage(from, to, subject, body, html)
	} else {
		var err error
		payload, err = buildMixedMessage(from, to, subject, body, html, files)
		if err != nil {
			result.ErrorMessage = err.Error()
			return result
		}
	}

	addr, _, u, err := splitEndpoint(serverURL, "25")
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	implicitTLS := strings.EqualFold(u.Scheme, "smtps")
	if implicitTLS && u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "465")
	}

	conn, err := c.dial(addr)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("connect failed: %v", err)
		return result
	}
	defer conn.Close()

	if implicitTLS {
		cfg, err := c.tlsClientConfig(u.Hostname())
		if err != nil {
			result.ErrorMessage = err.Error()
			return result
		}
		conn = tls.Client(conn, cfg)
	}

	cc := newControlConn(conn, c.timeout, c.logger)

	greeting, err := cc.read()
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to read greeting: %v", err)
		return result
	}
	if greeting.Code != 220 {
		return result.fail(&ProtocolError{Op: "greeting", Response: greeting.Message, Code: greeting.Code})
	}

	ehlo, err := cc.expect2xx("EHLO", "netq")
	if err != nil {
		return result.fail(err)
	}

	if !implicitTLS && advertises(ehlo, "STARTTLS") {
		if _, err := cc.expect(220, "STARTTLS"); err != nil {
			return result.fail(err)
		}
		cfg, err := c.tlsClientConfig(u.Hostname())
		if err != nil {
			result.ErrorMessage = err.Error()
			return result
		}
		conn = tls.Client(conn, cfg)
		cc = newControlConn(conn, c.timeout, c.logger)
		if _, err := cc.expect2xx("EHLO", "netq"); err != nil {
			return result.fail(err)
		}
	}

	if c.username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte("\x00" + c.username + "\x00" + c.password))
		if _, err := cc.expect(235, "AUTH", "PLAIN", cred); err != nil {
			return result.fail(err)
		}
	}

	if _, err := cc.expect2xx("MAIL", "FROM:<"+from+">"); err != nil {
		return result.fail(err)
	}

	for _, rcpt := range strings.Split(to, ",") {
		rcpt = strings.TrimSpace(rcpt)
		if rcpt == "" {
			continue
		}
		reply, err := cc.cmd("RCPT", "TO:<"+rcpt+">")
		if err != nil {
			return result.fail(err)
		}
		if reply.Code != 250 && reply.Code != 251 {
			return result.fail(&ProtocolError{Op: "RCPT", Response: reply.Message, Code: reply.Code})
		}
	}

	if _, err := cc.expect(354, "DATA"); err != nil {
		return result.fail(err)
	}

	if err := writePayload(conn, payload, c.timeout); err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to send message data: %v", err)
		return result
	}

	final, err := cc.read()
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to read reply: %v", err)
		return result
	}
	result.Code = final.Code
	if !final.Is2xx() {
		return result.fail(&ProtocolError{Op: "DATA", Response: final.Message, Code: final.Code})
	}

	_, _ = cc.cmd("QUIT")
	return result
}

// writePayload streams the rendered message through the byte-counting
// reader, dot-stuffs leading periods, and appends the end-of-data marker.
func writePayload(conn io.Writer, payload []byte, timeout time.Duration) error {
	if dc, ok := conn.(interface{ SetWriteDeadline(time.Time) error }); ok && timeout > 0 {
		if err := dc.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}

	src := &payloadReader{payload: payload}
	buf := make([]byte, 4096)
	atLineStart := true
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if werr := writeDotStuffed(conn, buf[:n], &atLineStart); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	terminator := "\r\n.\r\n"
	if atLineStart {
		terminator = ".\r\n"
	}
	_, err := io.WriteString(conn, terminator)
	return err
}

// writeDotStuffed escapes lines beginning with '.' so they cannot be
// mistaken for the end-of-data marker.
func writeDotStuffed(w io.Writer, chunk []byte, atLineStart *bool) error {
	for _, b := range chunk {
		if *atLineStart && b == '.' {
			if _, err := w.Write([]byte{'.'}); err != nil {
				return err
			}
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return err
		}
		*atLineStart = b == '\n'
	}
	return nil
}

// advertises reports whether an EHLO reply lists the given extension.
func advertises(reply *Reply, ext string) bool {
	for _, line := range reply.Lines {
		if len(line) > 4 && strings.EqualFold(strings.TrimSpace(line[4:]), ext) {
			return true
		}
	}
	return false
}

// fail records err on the result, lifting the reply code out of protocol
// errors.
func (r *SMTPResult) fail(err error) *SMTPResult {
	r.ErrorMessage = err.Error()
	var pe *ProtocolError
	if errors.As(err, &pe) {
		r.Code = pe.Code
	}
	return r
}
