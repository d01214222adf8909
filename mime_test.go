package netq

import (
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildFlatMessage(t *testing.T) {
	msg := string(buildFlatMessage("a@x.com", "b@y.com", "Hi", "hello there", false))

	header, body, found := strings.Cut(msg, "\r\n\r\n")
	if !found {
		t.Fatal("no blank line between headers and body")
	}
	if body != "hello there" {
		t.Errorf("body = %q, want %q", body, "hello there")
	}
	for _, want := range []string{
		"From: a@x.com",
		"To: b@y.com",
		"Subject: Hi",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("headers missing %q:\n%s", want, header)
		}
	}
	if strings.Contains(msg, "multipart") {
		t.Error("flat message must not be multipart")
	}
}

func TestBuildFlatMessageHTML(t *testing.T) {
	msg := string(buildFlatMessage("a@x.com", "b@y.com", "Hi", "<b>hi</b>", true))
	if !strings.Contains(msg, "Content-Type: text/html; charset=UTF-8") {
		t.Errorf("missing html content type:\n%s", msg)
	}
}

func TestBuildMixedMessage(t *testing.T) {
	dir := t.TempDir()
	attachment := filepath.Join(dir, "data.bin")
	payload := []byte{0x00, 0x01, 0xFF, 0xFE}
	if err := os.WriteFile(attachment, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	msg, err := buildMixedMessage("a@x.com", "b@y.com", "Hi", "see attached", false, []string{attachment})
	if err != nil {
		t.Fatalf("buildMixedMessage: %v", err)
	}
	text := string(msg)

	if !strings.Contains(text, "Content-Type: multipart/mixed; boundary=") {
		t.Error("missing multipart/mixed header")
	}

	bodyIdx := strings.Index(text, "see attached")
	attIdx := strings.Index(text, "application/octet-stream")
	if bodyIdx == -1 || attIdx == -1 {
		t.Fatalf("missing body or attachment part:\n%s", text)
	}
	if bodyIdx > attIdx {
		t.Error("body part must precede attachment parts")
	}

	if !strings.Contains(text, `filename="data.bin"`) {
		t.Error("attachment filename not derived from final path segment")
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	if !strings.Contains(text, encoded) {
		t.Errorf("attachment not base64 encoded as %q:\n%s", encoded, text)
	}

	if !strings.HasSuffix(text, "--"+mixedBoundary+"--\r\n") {
		t.Error("missing closing boundary")
	}
}

func TestBuildMixedMessageMissingAttachment(t *testing.T) {
	_, err := buildMixedMessage("a@x.com", "b@y.com", "Hi", "body", false,
		[]string{"/no/such/file.bin"})
	if err == nil {
		t.Fatal("expected error for missing attachment")
	}
}

func TestPayloadReader(t *testing.T) {
	pr := &payloadReader{payload: []byte("abcdefgh")}

	buf := make([]byte, 3)
	var got []byte
	for {
		n, err := pr.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if string(got) != "abcdefgh" {
		t.Errorf("read %q, want %q", got, "abcdefgh")
	}
	if pr.bytesRead != 8 {
		t.Errorf("bytesRead = %d, want 8", pr.bytesRead)
	}

	// A read after completion supplies zero further bytes.
	if n, err := pr.Read(buf); n != 0 || err != io.EOF {
		t.Errorf("read after EOF = (%d, %v), want (0, EOF)", n, err)
	}
}
