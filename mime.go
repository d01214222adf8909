package netq

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// mixedBoundary separates the parts of a multipart/mixed email. A fixed
// token is fine here: the base64-encoded attachment bodies can never
// contain it.
const mixedBoundary = "=_netq_mixed_0000"

// buildFlatMessage renders a non-multipart email: a plain header block,
// a blank line, then the body. Used whenever there are no attachments.
func buildFlatMessage(from, to, subject, body string, html bool) []byte {
	var buf bytes.Buffer
	writeEnvelopeHeaders(&buf, from, to, subject)
	fmt.Fprintf(&buf, "Content-Type: %s; charset=UTF-8\r\n", bodyContentType(html))
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}

// buildMixedMessage renders a multipart/mixed email: the text or HTML body
// part first, then one base64-encoded application/octet-stream part per
// attachment, with the filename taken from the path's final segment.
// An attachment that cannot be read is a local resource failure, reported
// before any network attempt.
func buildMixedMessage(from, to, subject, body string, html bool, files []string) ([]byte, error) {
	var buf bytes.Buffer
	writeEnvelopeHeaders(&buf, from, to, subject)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixedBoundary)

	fmt.Fprintf(&buf, "--%s\r\n", mixedBoundary)
	fmt.Fprintf(&buf, "Content-Type: %s; charset=UTF-8\r\n\r\n", bodyContentType(html))
	buf.WriteString(body)
	buf.WriteString("\r\n")

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open attachment: %w", err)
		}

		fmt.Fprintf(&buf, "--%s\r\n", mixedBoundary)
		buf.WriteString("Content-Type: application/octet-stream\r\n")
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n",
			lastPathSegment(path))
		writeBase64Wrapped(&buf, data)
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s--\r\n", mixedBoundary)
	return buf.Bytes(), nil
}

func writeEnvelopeHeaders(buf *bytes.Buffer, from, to, subject string) {
	fmt.Fprintf(buf, "From: %s\r\n", from)
	fmt.Fprintf(buf, "To: %s\r\n", to)
	fmt.Fprintf(buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
}

func bodyContentType(html bool) string {
	if html {
		return "text/html"
	}
	return "text/plain"
}

// writeBase64Wrapped encodes data in base64 split into 76-character lines.
func writeBase64Wrapped(buf *bytes.Buffer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")
}

// payloadReader feeds a rendered message to the transport while tracking
// how many bytes have been delivered. Each call supplies at most the
// remaining unread bytes; a read after the last byte signals completion.
type payloadReader struct {
	payload   []byte
	bytesRead int
}

func (p *payloadReader) Read(b []byte) (int, error) {
	if p.bytesRead >= len(p.payload) {
		return 0, io.EOF
	}
	n := copy(b, p.payload[p.bytesRead:])
	p.bytesRead += n
	return n, nil
}
