package netq

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// Telnet protocol bytes.
const (
	telnetSE   = 0xF0
	telnetSB   = 0xFA
	telnetWILL = 0xFB
	telnetWONT = 0xFC
	telnetDO   = 0xFD
	telnetDONT = 0xFE
	telnetIAC  = 0xFF
)

// idleReadWindow is how long a telnet exchange waits for more output after
// the last byte before deciding the remote side is done.
const idleReadWindow = 2 * time.Second

// TelnetClient drives scripted telnet exchanges: connect, optionally send
// commands, and accumulate the remote output with protocol negotiation
// sequences filtered out. The overall timeout bounds the whole exchange.
type TelnetClient struct {
	settings
}

// NewTelnetClient creates a telnet client.
func NewTelnetClient(options ...Option) (*TelnetClient, error) {
	c := &TelnetClient{settings: defaultSettings()}
	if err := c.settings.apply(options); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect reads the server's banner without sending any command.
func (c *TelnetClient) Connect(rawURL string) *TelnetResponse {
	return c.exec(rawURL, nil, nil)
}

// Quote sends a single command and returns the accumulated output.
func (c *TelnetClient) Quote(rawURL, command string) *TelnetResponse {
	return c.exec(rawURL, []string{command}, nil)
}

// Command sends a list of commands in order and returns the accumulated
// output.
func (c *TelnetClient) Command(rawURL string, commands []string) *TelnetResponse {
	return c.exec(rawURL, commands, nil)
}

// Script reads commands from a line-delimited local file and sends them in
// order. An unreadable file is reported before any network attempt.
func (c *TelnetClient) Script(rawURL, scriptPath string) *TelnetResponse {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return &TelnetResponse{ErrorMessage: fmt.Sprintf("unable to open script file: %v", err)}
	}

	var commands []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			commands = append(commands, line)
		}
	}

	return c.exec(rawURL, commands, nil)
}

// ExecWithOptions runs a command list while accepting the given telnet
// option codes during negotiation instead of refusing everything.
func (c *TelnetClient) ExecWithOptions(rawURL string, commands []string, acceptOptions []byte) *TelnetResponse {
	accept := make(map[byte]bool, len(acceptOptions))
	for _, opt := range acceptOptions {
		accept[opt] = true
	}
	return c.exec(rawURL, commands, accept)
}

func (c *TelnetClient) exec(rawURL string, commands []string, accept map[byte]bool) *TelnetResponse {
	resp := &TelnetResponse{}

	addr := rawURL
	if strings.Contains(rawURL, "://") {
		a, _, _, err := splitEndpoint(rawURL, "23")
		if err != nil {
			resp.ErrorMessage = err.Error()
			return resp
		}
		addr = a
	} else if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "23")
	}

	conn, err := c.dial(addr)
	if err != nil {
		resp.ErrorMessage = fmt.Sprintf("connect failed: %v", err)
		return resp
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	session := &telnetSession{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		accept:   accept,
		deadline: deadline,
		logger:   c.logger,
	}

	var out strings.Builder
	if err := session.drain(&out); err != nil {
		resp.Content = out.String()
		resp.ErrorMessage = err.Error()
		return resp
	}

	for _, command := range commands {
		c.logger.Debug("telnet command", "cmd", command)
		if err := conn.SetWriteDeadline(deadline); err != nil {
			resp.Content = out.String()
			resp.ErrorMessage = fmt.Sprintf("failed to set write deadline: %v", err)
			return resp
		}
		if _, err := fmt.Fprintf(conn, "%s\r\n", command); err != nil {
			resp.Content = out.String()
			resp.ErrorMessage = fmt.Sprintf("failed to send command: %v", err)
			return resp
		}
		if err := session.drain(&out); err != nil {
			resp.Content = out.String()
			resp.ErrorMessage = err.Error()
			return resp
		}
	}

	resp.Content = out.String()
	return resp
}

// telnetSession reads from the connection, answering negotiation requests
// and filtering command sequences out of the data stream.
type telnetSession struct {
	conn     net.Conn
	reader   *bufio.Reader
	accept   map[byte]bool
	deadline time.Time
	eof      bool
	logger   *slog.Logger
}

// drain accumulates output until the remote side pauses for the idle
// window, hits EOF, or the overall deadline passes. A pause or EOF is the
// normal end of an exchange step, not an error.
func (ts *telnetSession) drain(out *strings.Builder) error {
	if ts.eof {
		return nil
	}

	for {
		readDeadline := time.Now().Add(idleReadWindow)
		if readDeadline.After(ts.deadline) {
			readDeadline = ts.deadline
		}
		if !readDeadline.After(time.Now()) {
			return nil
		}
		if err := ts.conn.SetReadDeadline(readDeadline); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		b, err := ts.reader.ReadByte()
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return nil
			}
			ts.eof = true
			return nil
		}

		if b != telnetIAC {
			out.WriteByte(b)
			continue
		}

		if err := ts.handleCommand(out); err != nil {
			return err
		}
	}
}

// handleCommand consumes one sequence following an IAC byte.
func (ts *telnetSession) handleCommand(out *strings.Builder) error {
	cmd, err := ts.reader.ReadByte()
	if err != nil {
		ts.eof = true
		return nil
	}

	switch cmd {
	case telnetIAC:
		// Escaped 0xFF data byte.
		out.WriteByte(telnetIAC)
		return nil

	case telnetWILL, telnetWONT, telnetDO, telnetDONT:
		opt, err := ts.reader.ReadByte()
		if err != nil {
			ts.eof = true
			return nil
		}
		return ts.negotiate(cmd, opt)

	case telnetSB:
		// Skip subnegotiation data through IAC SE.
		for {
			b, err := ts.reader.ReadByte()
			if err != nil {
				ts.eof = true
				return nil
			}
			if b != telnetIAC {
				continue
			}
			next, err := ts.reader.ReadByte()
			if err != nil || next == telnetSE {
				if err != nil {
					ts.eof = true
				}
				return nil
			}
		}

	default:
		// Other two-byte commands (NOP, GA, ...) carry no payload.
		return nil
	}
}

// negotiate answers a WILL/WONT/DO/DONT request: accepted options get the
// affirmative response, everything else is refused.
func (ts *telnetSession) negotiate(cmd, opt byte) error {
	var reply byte
	switch cmd {
	case telnetWILL:
		reply = telnetDONT
		if ts.accept[opt] {
			reply = telnetDO
		}
	case telnetDO:
		reply = telnetWONT
		if ts.accept[opt] {
			reply = telnetWILL
		}
	default:
		// WONT and DONT need no response in this refuse-by-default scheme.
		return nil
	}

	ts.logger.Debug("telnet negotiation", "cmd", cmd, "opt", opt, "reply", reply)

	if err := ts.conn.SetWriteDeadline(ts.deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if _, err := ts.conn.Write([]byte{telnetIAC, reply, opt}); err != nil {
		return fmt.Errorf("failed to send negotiation reply: %w", err)
	}
	return nil
}
