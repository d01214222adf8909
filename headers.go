package netq

import (
	"io"
	"strconv"
	"strings"
)

// messageSink receives protocol output as the exchange loop observes it:
// header lines one at a time in arrival order, then body bytes in chunks.
// The exchange loop is generic over any implementation; the response
// builders below are the standard ones.
type messageSink interface {
	// OnHeaderLine consumes one raw header line, including the status
	// line and its terminator. It returns the number of bytes consumed.
	OnHeaderLine(line string) int

	// OnBody consumes one chunk of decoded body bytes.
	OnBody(chunk []byte) error
}

// consumeHeaderLine applies one raw header line to the response in place.
//
// Status lines ("HTTP/1.1 404 Not Found") update Status and StatusText;
// on a redirect chain each hop delivers a fresh status line and the last
// one processed wins. Header lines are split on the first ": ". Set-Cookie
// values are reduced to the name=value pair before the first ';', with a
// malformed pair (no '=') skipped. Anything else without a separator,
// such as the blank line ending the header block, is ignored.
func consumeHeaderLine(resp *HTTPResponse, line string) {
	if strings.HasPrefix(line, "HTTP/") {
		statusLine := strings.TrimRight(line, "\r\n")
		fields := strings.SplitN(statusLine, " ", 3)
		if len(fields) >= 2 {
			if code, err := strconv.Atoi(fields[1]); err == nil {
				resp.Status = code
			}
		}
		if len(fields) == 3 {
			resp.StatusText = strings.TrimSpace(fields[2])
		}
		return
	}

	sep := strings.Index(line, ": ")
	if sep == -1 {
		return
	}

	key := line[:sep]
	value := line[sep+2:]

	// Tolerate both bare LF and CRLF termination without double-stripping.
	value = strings.TrimSuffix(value, "\n")
	value = strings.TrimSuffix(value, "\r")

	if key == "Set-Cookie" {
		pair := value
		if semi := strings.IndexByte(pair, ';'); semi != -1 {
			pair = pair[:semi]
		}
		name, cookieValue, ok := strings.Cut(pair, "=")
		if !ok {
			return
		}
		resp.Cookies[name] = cookieValue
		return
	}

	resp.Header[key] = value
}

// bodyBuffer accumulates the body in memory (Get, Post, Read).
type bodyBuffer struct {
	resp *HTTPResponse
}

func (b *bodyBuffer) OnHeaderLine(line string) int {
	consumeHeaderLine(b.resp, line)
	return len(line)
}

func (b *bodyBuffer) OnBody(chunk []byte) error {
	b.resp.Content = append(b.resp.Content, chunk...)
	return nil
}

// bodyWriter streams the body to an io.Writer (DownloadFile).
type bodyWriter struct {
	resp *HTTPResponse
	w    io.Writer
}

func (b *bodyWriter) OnHeaderLine(line string) int {
	consumeHeaderLine(b.resp, line)
	return len(line)
}

func (b *bodyWriter) OnBody(chunk []byte) error {
	_, err := b.w.Write(chunk)
	return err
}

// bodyDiscard parses headers and drops the body (Ping).
type bodyDiscard struct {
	resp *HTTPResponse
}

func (b *bodyDiscard) OnHeaderLine(line string) int {
	consumeHeaderLine(b.resp, line)
	return len(line)
}

func (b *bodyDiscard) OnBody(chunk []byte) error {
	return nil
}
