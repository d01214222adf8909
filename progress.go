package netq

import "io"

// progressWriter wraps an io.Writer and reports the running byte total to
// the configured progress callback after each write. Used by the download
// paths (HTTP DownloadFile, FTP retrievals).
type progressWriter struct {
	w        io.Writer
	callback func(bytesTransferred int64)
	total    int64
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.total += int64(n)
	if pw.callback != nil && n > 0 {
		pw.callback(pw.total)
	}
	return n, err
}

// progressReader is the upload-side counterpart, wrapping the local file
// being streamed to the server.
type progressReader struct {
	r        io.Reader
	callback func(bytesTransferred int64)
	total    int64
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.total += int64(n)
	if pr.callback != nil && n > 0 {
		pr.callback(pr.total)
	}
	return n, err
}

// meterWriter applies the settings' progress callback to w, if one is set.
func (s *settings) meterWriter(w io.Writer) io.Writer {
	if s.progress == nil {
		return w
	}
	return &progressWriter{w: w, callback: s.progress}
}

// meterReader applies the settings' progress callback to r, if one is set.
func (s *settings) meterReader(r io.Reader) io.Reader {
	if s.progress == nil {
		return r
	}
	return &progressReader{r: r, callback: s.progress}
}
