// Package sqliteutil holds small helpers for working with SQLite store files
// on disk: path handling, header checks, DSNs and the auxiliary files SQLite
// keeps next to a database.
package sqliteutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Header is the magic string every SQLite 3 database file starts with.
const Header = "SQLite format 3\x00"

// DefaultBusyTimeoutMillis is applied to every connection opened through the
// DSN helpers.
const DefaultBusyTimeoutMillis = 5000

// SidecarSuffixes lists the files SQLite may keep beside a database.
var SidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// PathFromDSN returns the file a sqlite:// or file: connection string
// names. Anything else is taken as a plain path.
func PathFromDSN(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "sqlite://"), "?")
		return path
	case strings.HasPrefix(dsn, "file:"):
		u, err := url.Parse(dsn)
		if err != nil {
			path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
			return path
		}
		if u.Opaque != "" {
			return u.Opaque
		}
		return u.Path
	}
	return dsn
}

// HasHeader reports whether the file at path starts with the SQLite header.
func HasHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, len(Header))
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(buf, []byte(Header)), nil
}

// FileURI returns a SQLite URI filename for path with query appended.
// The path is made absolute and percent-encoded so that '?', '#' and '%'
// in directory names reach the filesystem unchanged.
func FileURI(path, query string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: "file", Path: path, RawQuery: query}
	return u.String()
}

func busyTimeout() string {
	return fmt.Sprintf("_pragma=busy_timeout(%d)", DefaultBusyTimeoutMillis)
}

// ReadOnlyDSN returns a DSN that opens path read-only with a busy timeout.
func ReadOnlyDSN(path string) string {
	return FileURI(path, "mode=ro&"+busyTimeout())
}

// ReadWriteDSN returns a DSN that opens an existing database at path for
// writing with a busy timeout. The file is not created if missing.
func ReadWriteDSN(path string) string {
	return FileURI(path, "mode=rw&"+busyTimeout())
}

// CreateDSN returns a DSN that creates the database at path if needed.
func CreateDSN(path string) string {
	return FileURI(path, "mode=rwc&"+busyTimeout())
}

// SidecarPaths returns the auxiliary files SQLite may keep for path.
func SidecarPaths(path string) []string {
	paths := make([]string, len(SidecarSuffixes))
	for i, suffix := range SidecarSuffixes {
		paths[i] = path + suffix
	}
	return paths
}

// RemoveWithSidecars removes path and its auxiliary files. Missing files are
// not an error.
func RemoveWithSidecars(path string) error {
	var errs []error
	for _, p := range append([]string{path}, SidecarPaths(path)...) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GenerateStagingPath returns the path a replacement database is written to
// before it is renamed over path. It lives in the same directory so the
// rename stays on one filesystem.
// Examples:
//   - "app.db" -> "app_staging.db"
//   - "./data/app.sqlite" -> "./data/app_staging.sqlite"
//   - "app" -> "app_staging"
func GenerateStagingPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + "_staging"
	}
	return strings.TrimSuffix(path, ext) + "_staging" + ext
}
