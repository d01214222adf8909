package netq

import "strings"

// ListingEntry is one parsed line of a Unix-style long-format directory
// listing. It is consumed immediately by the recursive walker and the
// file/folder probes; nothing persists it.
type ListingEntry struct {
	// IsDir is true when the listing line describes a directory.
	IsDir bool

	// Name is the entry name, with internal runs of whitespace collapsed
	// to single spaces (a known limitation of the parsing heuristic).
	Name string
}

// splitListingLines splits a raw listing blob into its non-empty lines,
// tolerating both LF and CRLF terminated output.
func splitListingLines(blob string) []string {
	var lines []string
	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParseListingLine parses one line of a long-format directory listing, e.g.
//
//	drwxr-xr-x 2 user group 4096 Jan 1 00:00 subdir
//	-rw-r--r-- 1 user group  123 Jan 1 00:00 file.txt
//
// There is no universal machine format for LIST output; this targets the
// common Unix ls -l style. With at least nine whitespace-delimited tokens
// the name starts at token nine and embedded spaces are restored by
// re-joining the tail with single spaces. Shorter, non-standard lines fall
// back to the last token rather than failing. An empty line yields the
// zero ListingEntry.
func ParseListingLine(line string) ListingEntry {
	if line == "" {
		return ListingEntry{}
	}

	isDir := line[0] == 'd'
	tokens := strings.Fields(line)

	var name string
	switch {
	case len(tokens) >= 9:
		name = strings.Join(tokens[8:], " ")
	case len(tokens) > 0:
		name = tokens[len(tokens)-1]
	}

	return ListingEntry{IsDir: isDir, Name: name}
}
