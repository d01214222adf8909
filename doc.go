// Package netq is a client-side networking toolkit covering HTTP, FTP,
// SFTP, SMTP, telnet and Tor-tunneled HTTP behind one small response
// model.
//
// Every protocol gets its own client type (HTTPClient, FTPClient,
// SMTPClient, TelnetClient, TorClient), configured at construction with
// functional options and immutable afterwards. Operations are synchronous
// and always return a structured response: transport and local failures
// land in the response's ErrorMessage rather than being returned as
// errors, so callers branch on Ok() or on the protocol code.
//
//	client, err := netq.NewHTTPClient(netq.WithTimeout(10 * time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp := client.Get("https://example.com", nil)
//	if resp.Ok() {
//	    fmt.Println(resp.Status, len(resp.Content))
//	}
//
// The HTTP client speaks HTTP/1.1 over its own connection handling:
// redirects, chunked bodies, basic auth, per-request headers and cookies,
// and http or SOCKS proxies. The FTP client is URL-addressed and opens a
// fresh session per operation; sftp:// URLs route to an SSH-based
// implementation with the same surface. The SMTP client renders flat or
// multipart/mixed messages itself, including base64 attachments. The Tor
// client is the HTTP client pre-routed through a local SOCKS endpoint
// with remote DNS resolution.
package netq
