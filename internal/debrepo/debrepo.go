// Package debrepo generates Debian repository metadata (Packages, Release)
// from the catalog, with generated blobs cached in the database so repeated
// requests do not rescan the package set.
package debrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/reliquary/reliquary/internal/catalog"
)

// Compression selects the encoding of a generated Packages blob.
type Compression string

const (
	CompressionNone  Compression = "none"
	CompressionGzip  Compression = "gz"
	CompressionBzip2 Compression = "bz2"
)

// Compressions lists every variant a Packages index is generated in.
var Compressions = []Compression{CompressionNone, CompressionGzip, CompressionBzip2}

// Blob is one generated metadata file together with its digests, ready to
// serve.
type Blob struct {
	Data   []byte
	MTime  time.Time
	Size   int64
	MD5Sum string
	SHA1   string
	SHA256 string
}

// Catalog is the slice of the catalog store the generator needs.
type Catalog interface {
	DebsByArch(ctx context.Context, arch string) ([]catalog.RelicDeb, error)
	RelicsByIndex(ctx context.Context, indexID int64) ([]catalog.Relic, error)
	CacheGet(ctx context.Context, key string) (*catalog.CacheEntry, error)
	CachePut(ctx context.Context, entry *catalog.CacheEntry) error
	CacheDelete(ctx context.Context, key string) error
}

// Engine generates and caches Debian metadata.
type Engine struct {
	cat Catalog
}

// NewEngine creates an Engine over the given catalog.
func NewEngine(cat Catalog) *Engine {
	return &Engine{cat: cat}
}

// cacheKey is the filecache key for one generated Packages variant.
func cacheKey(channel, index, arch string, comp Compression) string {
	return fmt.Sprintf("%s-%s-%s-%s", channel, index, arch, comp)
}

// blobFromEntry rehydrates a served blob from its cached row.
func blobFromEntry(e *catalog.CacheEntry) *Blob {
	return &Blob{
		Data:   e.Value,
		MTime:  e.MTime,
		Size:   e.Size,
		MD5Sum: e.MD5Sum,
		SHA1:   e.SHA1,
		SHA256: e.SHA256,
	}
}
