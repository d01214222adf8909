package netq

import "errors"

// HTTPResponse holds the outcome of a single HTTP operation.
//
// Exactly one of a populated Content or a non-empty ErrorMessage is
// meaningful for a completed operation. Both may be set when the transport
// partially succeeded, for example when a status line was received but a
// read error interrupted the body.
type HTTPResponse struct {
	// Status is the HTTP status code (0 if none was obtained).
	// On a redirect chain this is the status of the final hop.
	Status int

	// StatusText is the reason phrase from the status line.
	StatusText string

	// ErrorMessage describes a transport or local failure. Empty on success.
	ErrorMessage string

	// Content is the response body (or the probe timing for Ping).
	Content []byte

	// Header maps header names to values as received.
	// On duplicate keys the last occurrence wins.
	Header map[string]string

	// Cookies maps cookie names to values parsed from Set-Cookie headers.
	// Cookie attributes (Path, Domain, Expires, ...) are discarded.
	Cookies map[string]string
}

func newHTTPResponse() *HTTPResponse {
	return &HTTPResponse{
		Header:  make(map[string]string),
		Cookies: make(map[string]string),
	}
}

// Ok reports whether the operation completed without a transport
// or local failure.
func (r *HTTPResponse) Ok() bool {
	return r.ErrorMessage == ""
}

// Err returns the failure as an error, or nil on success.
func (r *HTTPResponse) Err() error {
	if r.ErrorMessage == "" {
		return nil
	}
	return errors.New(r.ErrorMessage)
}

// FTPResponse holds the outcome of a single FTP operation.
type FTPResponse struct {
	// Code is the final FTP reply code (0 if none was obtained).
	Code int

	// ErrorMessage describes a transport or local failure. Empty on success.
	ErrorMessage string

	// Content is the raw payload: file data for Read, listing text for
	// List, FileInfo and FolderInfo.
	Content string

	// List is the ordered sequence of entry names (List) or full remote
	// paths (ListRecursive).
	List []string
}

// Ok reports whether the operation completed without a transport
// or local failure.
func (r *FTPResponse) Ok() bool {
	return r.ErrorMessage == ""
}

// Err returns the failure as an error, or nil on success.
func (r *FTPResponse) Err() error {
	if r.ErrorMessage == "" {
		return nil
	}
	return errors.New(r.ErrorMessage)
}

// TelnetResponse holds the output of a telnet exchange.
type TelnetResponse struct {
	// Content is the accumulated remote output with telnet command
	// sequences filtered out.
	Content string

	// ErrorMessage describes a transport or local failure. Empty on success.
	ErrorMessage string
}

// Ok reports whether the exchange completed without a transport
// or local failure.
func (r *TelnetResponse) Ok() bool {
	return r.ErrorMessage == ""
}

// Err returns the failure as an error, or nil on success.
func (r *TelnetResponse) Err() error {
	if r.ErrorMessage == "" {
		return nil
	}
	return errors.New(r.ErrorMessage)
}

// SMTPResult holds the outcome of a mail submission.
type SMTPResult struct {
	// Code is the final SMTP reply code (0 if none was obtained).
	Code int

	// ErrorMessage describes a transport or local failure. Empty on success.
	ErrorMessage string
}

// Ok reports whether the message was accepted by the server.
func (r *SMTPResult) Ok() bool {
	return r.ErrorMessage == ""
}

// Err returns the failure as an error, or nil on success.
func (r *SMTPResult) Err() error {
	if r.ErrorMessage == "" {
		return nil
	}
	return errors.New(r.ErrorMessage)
}
