// Package paths validates channel/index/relic triples against the configured
// storage root. Every filesystem access for a relic goes through Resolve so
// that a crafted name can never address a file outside the root.
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotConfigured is returned when no storage root is configured.
var ErrNotConfigured = errors.New("storage location not configured")

// InvalidNameError reports a path segment containing a forbidden character.
type InvalidNameError struct {
	// What identifies the rejected input: "channel/index" or "relic name".
	What string
	Path string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.What, e.Path)
}

// EscapeError reports a normalized path that falls outside the storage root.
// This is always a hard error, never a not-found.
type EscapeError struct {
	What string
	Path string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("%s escapes storage root: %q", e.What, e.Path)
}

// Resolved carries the validated absolute paths for a relic location.
type Resolved struct {
	Root   string // cleaned storage root
	Folder string // <root>/<channel>/<index>
	Path   string // <root>/<channel>/<index>/<relic>; empty when no relic name was given
}

// allowed is the restricted character set for every path component.
var allowed = regexp.MustCompile(`^[A-Za-z0-9_\-/ .]*$`)

// Resolve validates (channel, index) and optionally a relic name against the
// storage root. The joined path is cleaned before the containment check, so
// ".." segments cannot escape even when every character is in the allowed
// set.
func Resolve(root, channel, index, relic string) (Resolved, error) {
	if root == "" {
		return Resolved{}, ErrNotConfigured
	}
	root = filepath.Clean(root)

	folder := filepath.Clean(filepath.Join(root, channel, index))
	if !allowed.MatchString(folder) {
		return Resolved{}, &InvalidNameError{What: "channel/index", Path: folder}
	}
	if !contains(root, folder) {
		return Resolved{}, &EscapeError{What: "channel/index", Path: folder}
	}

	res := Resolved{Root: root, Folder: folder}
	if relic != "" {
		p := filepath.Clean(filepath.Join(folder, relic))
		if !allowed.MatchString(p) {
			return Resolved{}, &InvalidNameError{What: "relic name", Path: p}
		}
		if !contains(root, p) {
			return Resolved{}, &EscapeError{What: "relic name", Path: p}
		}
		res.Path = p
	}
	return res, nil
}

func contains(root, p string) bool {
	if p == root {
		return true
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}
