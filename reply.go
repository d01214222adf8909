package netq

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Reply represents one server reply on a reply-code protocol (FTP or SMTP).
type Reply struct {
	// Code is the three-digit reply code (e.g., 220, 550)
	Code int

	// Message is the human-readable message from the server
	Message string

	// Lines contains all lines of the reply (for multi-line replies)
	Lines []string
}

// Is2xx returns true if the reply code is in the 2xx range (success).
func (r *Reply) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// Is3xx returns true if the reply code is in the 3xx range (intermediate).
func (r *Reply) Is3xx() bool {
	return r.Code >= 300 && r.Code < 400
}

// Is4xx returns true if the reply code is in the 4xx range (temporary failure).
func (r *Reply) Is4xx() bool {
	return r.Code >= 400 && r.Code < 500
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (r *Reply) Is5xx() bool {
	return r.Code >= 500 && r.Code < 600
}

// String returns the full reply as a string.
func (r *Reply) String() string {
	return strings.Join(r.Lines, "\n")
}

// readReply reads a complete reply from the server.
// It handles both single-line and multi-line forms.
//
// Single-line: "220 Welcome\r\n"
// Multi-line:
//
//	"220-Welcome\r\n"
//	"220-Second line\r\n"
//	"220 Ready\r\n"
//
// The reply is complete when a line starts with the code followed by a space.
// FTP and SMTP share this shape, so both clients read through here.
func readReply(r *bufio.Reader) (*Reply, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 3 {
		return nil, fmt.Errorf("invalid reply line: %q", line)
	}

	code, err := strconv.Atoi(line[0:3])
	if err != nil {
		return nil, fmt.Errorf("invalid reply code: %q", line[0:3])
	}

	lines := []string{line}

	// Bare "250" style replies are legal in SMTP.
	if len(line) == 3 {
		return &Reply{Code: code, Lines: lines}, nil
	}

	if line[3] == ' ' {
		return &Reply{
			Code:    code,
			Message: line[4:],
			Lines:   lines,
		}, nil
	}

	if line[3] != '-' {
		return nil, fmt.Errorf("invalid reply format: %q", line)
	}

	if err := readReplyContinuation(r, code, &lines); err != nil {
		return nil, err
	}

	var messageLines []string
	for _, l := range lines {
		if len(l) > 4 {
			messageLines = append(messageLines, l[4:])
		}
	}

	return &Reply{
		Code:    code,
		Message: strings.Join(messageLines, "\n"),
		Lines:   lines,
	}, nil
}

func readReplyContinuation(r *bufio.Reader, code int, lines *[]string) error {
	codeStr := fmt.Sprintf("%03d", code)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && len(*lines) > 0 {
				return fmt.Errorf("unexpected EOF reading reply")
			}
			return err
		}

		line = strings.TrimRight(line, "\r\n")

		// RFC 2389 style continuation lines start with a space.
		if len(line) > 0 && line[0] == ' ' {
			*lines = append(*lines, line)
			continue
		}

		if len(line) < 4 || line[0:3] != codeStr {
			return fmt.Errorf("reply code mismatch or invalid line: %q", line)
		}

		*lines = append(*lines, line)

		if line[3] == ' ' {
			return nil
		}

		if line[3] != '-' {
			return fmt.Errorf("invalid reply format: %q", line)
		}
	}
}
