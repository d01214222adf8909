package netq

import (
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ListRecursive walks the directory tree rooted at the URL's path and
// returns every entry as a full remote path in List, parents before
// children (pre-order, depth first, server order within a directory).
// Directories that fail to list contribute no entries; those failures are
// aggregated into ErrorMessage as advisory context while the entries
// gathered elsewhere are still returned.
func (c *FTPClient) ListRecursive(rawURL string, username, password string) *FTPResponse {
	if isSFTP(rawURL) {
		return c.sftpListRecursive(rawURL, username, password)
	}

	resp := &FTPResponse{}

	sess, path, err := c.connect(rawURL, username, password)
	if err != nil {
		return resp.fail(err)
	}
	defer sess.quit()

	var walkErrs *multierror.Error
	c.walkTree(sess, path, &resp.List, &walkErrs)

	if walkErrs != nil {
		resp.ErrorMessage = walkErrs.Error()
	}
	return resp
}

// walkTree lists dir, appends each entry's full path to out, and descends
// into subdirectories. Current- and parent-directory entries are skipped.
func (c *FTPClient) walkTree(sess *ftpSession, dir string, out *[]string, errs **multierror.Error) {
	text, _, err := sess.listRaw("LIST", dir)
	if err != nil {
		c.logger.Debug("listing failed during walk", "dir", dir, "error", err)
		*errs = multierror.Append(*errs, err)
		return
	}

	prefix := dir
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	for _, line := range splitListingLines(text) {
		entry := ParseListingLine(line)
		if entry.Name == "" || entry.Name == "." || entry.Name == ".." {
			continue
		}

		full := prefix + entry.Name
		*out = append(*out, full)

		if entry.IsDir {
			c.walkTree(sess, full, out, errs)
		}
	}
}
