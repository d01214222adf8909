package netq

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
)

// buildMultipartForm assembles a multipart/form-data body: one part per
// text field (field name + raw value) and one part per file field (field
// name + file content + filename derived from the final path segment).
// Fields are emitted in sorted key order so the body is deterministic.
// A file that cannot be read is a local resource failure, reported before
// any network attempt.
func buildMultipartForm(form, files map[string]string) (body []byte, contentType string, err error) {
	boundary := "netq-" + randomToken()

	var buf bytes.Buffer
	for _, name := range sortedKeys(form) {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Disposition: form-data; name=%q\r\n\r\n", name)
		buf.WriteString(form[name])
		buf.WriteString("\r\n")
	}

	for _, name := range sortedKeys(files) {
		path := files[name]
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("unable to open form file: %w", err)
		}

		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Disposition: form-data; name=%q; filename=%q\r\n",
			name, lastPathSegment(path))
		buf.WriteString("Content-Type: application/octet-stream\r\n\r\n")
		buf.Write(data)
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), "multipart/form-data; boundary=" + boundary, nil
}

func randomToken() string {
	var b [12]byte
	// rand.Read never fails on supported platforms
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
