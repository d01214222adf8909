package netq

import (
	"reflect"
	"strings"
	"testing"
)

func TestListRecursive(t *testing.T) {
	s := startFTPServer(t)
	s.listings["/data"] = strings.Join([]string{
		"drwxr-xr-x 2 u g 4096 Jan 1 00:00 .",
		"drwxr-xr-x 2 u g 4096 Jan 1 00:00 ..",
		"drwxr-xr-x 2 u g 4096 Jan 1 00:00 photos",
		"-rw-r--r-- 1 u g 11 Jan 1 00:00 notes.txt",
	}, "\r\n") + "\r\n"
	s.listings["/data/photos"] = strings.Join([]string{
		"-rw-r--r-- 1 u g 999 Jan 1 00:00 a.jpg",
		"-rw-r--r-- 1 u g 999 Jan 1 00:00 b.jpg",
	}, "\r\n") + "\r\n"

	resp := newTestFTPClient(t).ListRecursive(s.url("/data"), "", "")
	if !resp.Ok() {
		t.Fatalf("ListRecursive failed: %s", resp.ErrorMessage)
	}

	// Pre-order: a directory entry first, then its children, then the
	// remaining siblings, in server order.
	want := []string{
		"/data/photos",
		"/data/photos/a.jpg",
		"/data/photos/b.jpg",
		"/data/notes.txt",
	}
	if !reflect.DeepEqual(resp.List, want) {
		t.Errorf("List = %v, want %v", resp.List, want)
	}
}

func TestListRecursiveTrailingSlashBase(t *testing.T) {
	s := startFTPServer(t)
	s.listings["/data/"] = "-rw-r--r-- 1 u g 5 Jan 1 00:00 a.txt\r\n"

	resp := newTestFTPClient(t).ListRecursive(s.url("/data/"), "", "")
	if !resp.Ok() {
		t.Fatalf("ListRecursive failed: %s", resp.ErrorMessage)
	}
	want := []string{"/data/a.txt"}
	if !reflect.DeepEqual(resp.List, want) {
		t.Errorf("List = %v, want %v (no doubled slash)", resp.List, want)
	}
}

func TestListRecursivePartialFailure(t *testing.T) {
	s := startFTPServer(t)
	s.listings["/data"] = strings.Join([]string{
		"drwxr-xr-x 2 u g 4096 Jan 1 00:00 broken",
		"drwxr-xr-x 2 u g 4096 Jan 1 00:00 good",
		"-rw-r--r-- 1 u g 11 Jan 1 00:00 top.txt",
	}, "\r\n") + "\r\n"
	// No listing registered for /data/broken: the server answers 550.
	s.listings["/data/good"] = "-rw-r--r-- 1 u g 5 Jan 1 00:00 inner.txt\r\n"

	resp := newTestFTPClient(t).ListRecursive(s.url("/data"), "", "")

	// The failed subtree is isolated; everything else is still returned.
	want := []string{
		"/data/broken",
		"/data/good",
		"/data/good/inner.txt",
		"/data/top.txt",
	}
	if !reflect.DeepEqual(resp.List, want) {
		t.Errorf("List = %v, want %v", resp.List, want)
	}
	if resp.ErrorMessage == "" {
		t.Error("expected the subtree failure to be reported in ErrorMessage")
	}
}

func TestListRecursiveEmptyDirectory(t *testing.T) {
	s := startFTPServer(t)
	s.listings["/empty"] = ""

	resp := newTestFTPClient(t).ListRecursive(s.url("/empty"), "", "")
	if !resp.Ok() {
		t.Fatalf("ListRecursive failed: %s", resp.ErrorMessage)
	}
	if len(resp.List) != 0 {
		t.Errorf("List = %v, want empty", resp.List)
	}
}
