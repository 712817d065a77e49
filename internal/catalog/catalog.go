// Package catalog is the persistent record of channels, indices, relics,
// Debian control metadata and the generated-metadata cache, backed by
// PostgreSQL.
//
// Reads that expect zero or one row distinguish "none", "exactly one" and
// "multiple"; the multiple case is a data-integrity signal surfaced as
// *AmbiguousError, never silently reduced to the first row.
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// FormatMTime renders a file modification time in the textual
// seconds-since-epoch form stored in Relic.MTime.
func FormatMTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', -1, 64)
}

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("catalog: not found")

// AmbiguousError reports a lookup that matched more than one row where at
// most one was expected.
type AmbiguousError struct {
	Entity string // "channel", "index", "relic", "debinfo", "filecache"
	Key    string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("catalog: multiple %s rows for %q", e.Entity, e.Key)
}

// Channel is a top-level namespace, the first path segment under the storage
// root.
type Channel struct {
	ID    int64
	Name  string
	Dirty bool
}

// Index is a second-level namespace scoped under a Channel.
type Index struct {
	ID        int64
	ChannelID int64
	Name      string
	Dirty     bool
}

// Relic is a single stored artifact file.
type Relic struct {
	ID      int64
	IndexID int64
	Name    string
	// MTime is the file modification time as a textual float of seconds
	// since the epoch; the autoindex page reparses it, so it is stored
	// exactly as formatted.
	MTime string
	Size  int64
	Dirty bool
}

// DebInfo carries the control fields and whole-file digests extracted from a
// .deb relic. Package, Version, Architecture, Maintainer and Description are
// mandatory; the remaining control fields may be empty.
type DebInfo struct {
	ID      int64
	RelicID int64

	// Filename is the pool-relative path, pool/<index>/<relic_name>.
	Filename string
	MD5Sum   string
	SHA1     string
	SHA256   string
	SHA512   string

	Package        string
	Source         string
	Version        string
	Section        string
	Priority       string
	Architecture   string
	Essential      string
	Depends        string
	Recommends     string
	Suggests       string
	Enhances       string
	PreDepends     string
	InstalledSize  string
	Maintainer     string
	Description    string
	DescriptionMD5 string
	Homepage       string
	BuiltUsing     string
	MultiArch      string
}

// CacheEntry is one generated metadata blob, keyed by
// "{channel}-{index}-{arch}-{none|gz|bz2}".
type CacheEntry struct {
	Key    string
	Value  []byte
	MTime  time.Time
	Size   int64
	MD5Sum string
	SHA1   string
	SHA256 string
}

// IndexRef names an index together with its channel, for listings and
// pregeneration.
type IndexRef struct {
	IndexID int64
	Channel string
	Index   string
}
