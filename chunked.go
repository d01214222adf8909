package netq

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// chunkedReader decodes a Transfer-Encoding: chunked body stream.
// It reads size lines in hex, passes each chunk's bytes through, consumes
// the trailing CRLF after every chunk, and treats the zero-size chunk plus
// any trailer lines as end of stream.
type chunkedReader struct {
	r *bufio.Reader

	// remaining is the number of unread bytes in the current chunk
	remaining int

	done bool
}

func newChunkedReader(r *bufio.Reader) *chunkedReader {
	return &chunkedReader{r: r}
}

func (cr *chunkedReader) Read(p []byte) (int, error) {
	if cr.done {
		return 0, io.EOF
	}

	if cr.remaining == 0 {
		size, err := cr.readChunkSize()
		if err != nil {
			// The stream ended before the terminal 0 chunk: the body
			// is truncated, not complete.
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if size == 0 {
			if err := cr.discardTrailer(); err != nil {
				return 0, err
			}
			cr.done = true
			return 0, io.EOF
		}
		cr.remaining = size
	}

	if len(p) > cr.remaining {
		p = p[:cr.remaining]
	}

	n, err := cr.r.Read(p)
	cr.remaining -= n
	if err == io.EOF && cr.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}

	if cr.remaining == 0 && err == nil {
		err = cr.expectCRLF()
	}

	return n, err
}

// readChunkSize reads one "SIZE[;extensions]\r\n" line.
func (cr *chunkedReader) readChunkSize() (int, error) {
	line, err := cr.r.ReadString('\n')
	if err != nil {
		return 0, err
	}

	line = strings.TrimRight(line, "\r\n")
	if semi := strings.IndexByte(line, ';'); semi != -1 {
		line = line[:semi]
	}

	size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 32)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid chunk size line: %q", line)
	}

	return int(size), nil
}

// expectCRLF consumes the chunk-terminating CRLF (or bare LF). EOF here
// means the stream broke off before the terminal chunk.
func (cr *chunkedReader) expectCRLF() error {
	b, err := cr.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	if b == '\r' {
		if b, err = cr.r.ReadByte(); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
	}
	if b != '\n' {
		return fmt.Errorf("malformed chunk terminator: %q", b)
	}
	return nil
}

// discardTrailer consumes trailer lines up to and including the final
// blank line.
func (cr *chunkedReader) discardTrailer() error {
	for {
		line, err := cr.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if strings.TrimRight(line, "\r\n") == "" {
			return nil
		}
	}
}
