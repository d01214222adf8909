package netq

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// telnetTestServer writes a scripted banner (optionally with negotiation
// bytes), echoes commands, and records what the client sends back.
type telnetTestServer struct {
	ln     net.Listener
	banner []byte

	mu       sync.Mutex
	received []byte
}

func startTelnetServer(t *testing.T, banner []byte, echoCommands int) *telnetTestServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &telnetTestServer{ln: ln, banner: banner}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.Write(s.banner)

		reader := bufio.NewReader(conn)
		for i := 0; i < echoCommands; i++ {
			line, err := readTelnetLine(reader, s)
			if err != nil {
				return
			}
			fmt.Fprintf(conn, "you said: %s\r\n", line)
		}

		// Give the client time to send any trailing negotiation reply
		// before tearing down.
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		buf := make([]byte, 64)
		if n, _ := conn.Read(buf); n > 0 {
			s.mu.Lock()
			s.received = append(s.received, buf[:n]...)
			s.mu.Unlock()
		}
	}()

	return s
}

// readTelnetLine reads a command line, siphoning any negotiation bytes
// into the server's received log.
func readTelnetLine(reader *bufio.Reader, s *telnetTestServer) (string, error) {
	var line []byte
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0xFF {
			seq := []byte{b}
			for len(seq) < 3 {
				nb, err := reader.ReadByte()
				if err != nil {
					return "", err
				}
				seq = append(seq, nb)
			}
			s.mu.Lock()
			s.received = append(s.received, seq...)
			s.mu.Unlock()
			continue
		}
		if b == '\n' {
			return strings.TrimSuffix(string(line), "\r"), nil
		}
		line = append(line, b)
	}
}

func (s *telnetTestServer) addr() string {
	return s.ln.Addr().String()
}

func newTestTelnetClient(t *testing.T) *TelnetClient {
	t.Helper()
	client, err := NewTelnetClient(WithTimeout(10 * time.Second))
	if err != nil {
		t.Fatalf("NewTelnetClient: %v", err)
	}
	return client
}

func TestTelnetConnect(t *testing.T) {
	// IAC WILL ECHO ahead of the banner text.
	banner := append([]byte{telnetIAC, telnetWILL, 1}, []byte("Welcome to testhost\r\n")...)
	s := startTelnetServer(t, banner, 0)

	resp := newTestTelnetClient(t).Connect(s.addr())
	if !resp.Ok() {
		t.Fatalf("Connect failed: %s", resp.ErrorMessage)
	}
	if !strings.Contains(resp.Content, "Welcome to testhost") {
		t.Errorf("Content = %q, want the banner", resp.Content)
	}
	if strings.IndexByte(resp.Content, 0xFF) != -1 {
		t.Error("negotiation bytes leaked into Content")
	}

	// The unsolicited WILL must have been refused with DONT.
	s.mu.Lock()
	received := append([]byte(nil), s.received...)
	s.mu.Unlock()
	if !strings.Contains(string(received), string([]byte{telnetIAC, telnetDONT, 1})) {
		t.Errorf("server did not receive IAC DONT refusal, got % X", received)
	}
}

func TestTelnetQuote(t *testing.T) {
	s := startTelnetServer(t, []byte("login:\r\n"), 1)

	resp := newTestTelnetClient(t).Quote(s.addr(), "status")
	if !resp.Ok() {
		t.Fatalf("Quote failed: %s", resp.ErrorMessage)
	}
	if !strings.Contains(resp.Content, "login:") {
		t.Errorf("Content missing banner: %q", resp.Content)
	}
	if !strings.Contains(resp.Content, "you said: status") {
		t.Errorf("Content missing echo: %q", resp.Content)
	}
}

func TestTelnetCommand(t *testing.T) {
	s := startTelnetServer(t, []byte("ready\r\n"), 2)

	resp := newTestTelnetClient(t).Command(s.addr(), []string{"first", "second"})
	if !resp.Ok() {
		t.Fatalf("Command failed: %s", resp.ErrorMessage)
	}

	firstIdx := strings.Index(resp.Content, "you said: first")
	secondIdx := strings.Index(resp.Content, "you said: second")
	if firstIdx == -1 || secondIdx == -1 || firstIdx > secondIdx {
		t.Errorf("command outputs wrong or out of order: %q", resp.Content)
	}
}

func TestTelnetScript(t *testing.T) {
	s := startTelnetServer(t, []byte("ready\r\n"), 2)

	script := filepath.Join(t.TempDir(), "cmds.txt")
	if err := os.WriteFile(script, []byte("alpha\r\nbeta\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := newTestTelnetClient(t).Script(s.addr(), script)
	if !resp.Ok() {
		t.Fatalf("Script failed: %s", resp.ErrorMessage)
	}
	if !strings.Contains(resp.Content, "you said: alpha") ||
		!strings.Contains(resp.Content, "you said: beta") {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestTelnetScriptMissingFile(t *testing.T) {
	resp := newTestTelnetClient(t).Script("192.0.2.1:23", "/no/such/script.txt")
	if resp.Ok() {
		t.Fatal("expected local script failure")
	}
	if !strings.Contains(resp.ErrorMessage, "script file") {
		t.Errorf("ErrorMessage = %q", resp.ErrorMessage)
	}
}

func TestTelnetExecWithOptions(t *testing.T) {
	// IAC DO option 1: the client should agree with WILL when option 1
	// is in its accept set.
	banner := append([]byte{telnetIAC, telnetDO, 1}, []byte("go ahead\r\n")...)
	s := startTelnetServer(t, banner, 1)

	resp := newTestTelnetClient(t).ExecWithOptions(s.addr(), []string{"ping"}, []byte{1})
	if !resp.Ok() {
		t.Fatalf("ExecWithOptions failed: %s", resp.ErrorMessage)
	}

	s.mu.Lock()
	received := append([]byte(nil), s.received...)
	s.mu.Unlock()
	if !strings.Contains(string(received), string([]byte{telnetIAC, telnetWILL, 1})) {
		t.Errorf("server did not receive IAC WILL acceptance, got % X", received)
	}
}

func TestTelnetEscapedIACByte(t *testing.T) {
	// IAC IAC in the stream is a literal 0xFF data byte.
	banner := []byte{'A', telnetIAC, telnetIAC, 'B', '\r', '\n'}
	s := startTelnetServer(t, banner, 0)

	resp := newTestTelnetClient(t).Connect(s.addr())
	if !resp.Ok() {
		t.Fatalf("Connect failed: %s", resp.ErrorMessage)
	}
	if !strings.Contains(resp.Content, string([]byte{'A', 0xFF, 'B'})) {
		t.Errorf("Content = %q, want the escaped 0xFF preserved", resp.Content)
	}
}
