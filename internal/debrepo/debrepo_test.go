package debrepo

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliquary/reliquary/internal/catalog"
)

// fakeCatalog is an in-memory Catalog for exercising the generator without a
// database.
type fakeCatalog struct {
	debs   []catalog.RelicDeb
	relics map[int64][]catalog.Relic
	cache  map[string]*catalog.CacheEntry
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		relics: make(map[int64][]catalog.Relic),
		cache:  make(map[string]*catalog.CacheEntry),
	}
}

func (f *fakeCatalog) DebsByArch(_ context.Context, arch string) ([]catalog.RelicDeb, error) {
	var out []catalog.RelicDeb
	for _, rd := range f.debs {
		if strings.Contains(strings.ToLower(rd.Deb.Architecture), strings.ToLower(arch)) {
			out = append(out, rd)
		}
	}
	return out, nil
}

func (f *fakeCatalog) RelicsByIndex(_ context.Context, indexID int64) ([]catalog.Relic, error) {
	return f.relics[indexID], nil
}

func (f *fakeCatalog) CacheGet(_ context.Context, key string) (*catalog.CacheEntry, error) {
	if e, ok := f.cache[key]; ok {
		return e, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) CachePut(_ context.Context, entry *catalog.CacheEntry) error {
	f.cache[entry.Key] = entry
	return nil
}

func (f *fakeCatalog) CacheDelete(_ context.Context, key string) error {
	delete(f.cache, key)
	return nil
}

func deb(relicID int64, pkg, arch string, size int64, mutate func(*catalog.DebInfo)) catalog.RelicDeb {
	rd := catalog.RelicDeb{
		Relic: catalog.Relic{ID: relicID, IndexID: 1, Name: pkg + "_1.0_" + arch + ".deb", Size: size},
		Deb: catalog.DebInfo{
			RelicID:        relicID,
			Filename:       "pool/main/" + pkg + "_1.0_" + arch + ".deb",
			MD5Sum:         "m",
			SHA1:           "s1",
			SHA256:         "s256",
			SHA512:         "s512",
			Package:        pkg,
			Version:        "1.0",
			Architecture:   arch,
			Maintainer:     "Team <team@example.com>",
			Description:    "example package",
			DescriptionMD5: "dmd5",
		},
	}
	if mutate != nil {
		mutate(&rd.Deb)
	}
	return rd
}

func TestPackageIndexBody(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCatalog()
	fc.debs = []catalog.RelicDeb{
		deb(1, "tool", "amd64", 100, func(d *catalog.DebInfo) {
			d.Section = "utils"
			d.Priority = "optional"
			d.Depends = "libc6"
		}),
		deb(2, "data", "all", 200, nil),
		// Substring candidate that is not actually built for amd64.
		deb(3, "weird", "notamd64", 300, nil),
	}
	e := NewEngine(fc)

	blob, err := e.PackageIndex(ctx, "alpha", "main", "amd64", CompressionNone, false)
	require.NoError(t, err)

	want := strings.Join([]string{
		"Package: tool",
		"Version: 1.0",
		"Section: utils",
		"Priority: optional",
		"Architecture: amd64",
		"Depends: libc6",
		"Maintainer: Team <team@example.com>",
		"Description: example package",
		"Filename: pool/main/tool_1.0_amd64.deb",
		"Size: 100",
		"MD5Sum: m",
		"SHA1: s1",
		"SHA256: s256",
		"SHA512: s512",
		"Description-md5: dmd5",
		"",
	}, "\n")
	assert.Equal(t, want, string(blob.Data))

	sum := sha256.Sum256(blob.Data)
	assert.Equal(t, hex.EncodeToString(sum[:]), blob.SHA256)
	assert.Equal(t, int64(len(blob.Data)), blob.Size)
}

func TestPackageIndexPriorityNeedsSection(t *testing.T) {
	// A priority without a section is not emitted.
	ctx := context.Background()
	fc := newFakeCatalog()
	fc.debs = []catalog.RelicDeb{
		deb(1, "tool", "amd64", 100, func(d *catalog.DebInfo) {
			d.Priority = "optional"
		}),
	}
	e := NewEngine(fc)

	blob, err := e.PackageIndex(ctx, "alpha", "main", "amd64", CompressionNone, false)
	require.NoError(t, err)
	assert.NotContains(t, string(blob.Data), "Priority:")

	// And an empty priority is still emitted alongside a section.
	fc2 := newFakeCatalog()
	fc2.debs = []catalog.RelicDeb{
		deb(1, "tool", "amd64", 100, func(d *catalog.DebInfo) {
			d.Section = "utils"
		}),
	}
	blob, err = NewEngine(fc2).PackageIndex(ctx, "alpha", "main", "amd64", CompressionNone, false)
	require.NoError(t, err)
	assert.Contains(t, string(blob.Data), "Section: utils\nPriority: \n")
}

func TestPackageIndexEmpty(t *testing.T) {
	e := NewEngine(newFakeCatalog())
	blob, err := e.PackageIndex(context.Background(), "alpha", "main", "amd64", CompressionNone, false)
	require.NoError(t, err)
	assert.Empty(t, blob.Data)
}

func TestPackageIndexCache(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCatalog()
	fc.debs = []catalog.RelicDeb{deb(1, "tool", "amd64", 100, nil)}
	e := NewEngine(fc)

	first, err := e.PackageIndex(ctx, "alpha", "main", "amd64", CompressionNone, false)
	require.NoError(t, err)
	require.Contains(t, fc.cache, "alpha-main-amd64-none")

	// The package set changes, but the cached body is still served.
	fc.debs = append(fc.debs, deb(2, "extra", "amd64", 50, nil))
	second, err := e.PackageIndex(ctx, "alpha", "main", "amd64", CompressionNone, false)
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)

	// Force drops the cached variant and regenerates.
	third, err := e.PackageIndex(ctx, "alpha", "main", "amd64", CompressionNone, true)
	require.NoError(t, err)
	assert.Contains(t, string(third.Data), "Package: extra")
}

func TestPackageIndexCompressedFromSibling(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCatalog()
	fc.debs = []catalog.RelicDeb{deb(1, "tool", "amd64", 100, nil)}
	e := NewEngine(fc)

	plain, err := e.PackageIndex(ctx, "alpha", "main", "amd64", CompressionNone, false)
	require.NoError(t, err)

	// The package set changes after the uncompressed variant was cached. The
	// compressed variants must still describe the cached set, not the new one.
	fc.debs = append(fc.debs, deb(2, "extra", "amd64", 50, nil))

	gzBlob, err := e.PackageIndex(ctx, "alpha", "main", "amd64", CompressionGzip, false)
	require.NoError(t, err)
	gr, err := gzip.NewReader(bytes.NewReader(gzBlob.Data))
	require.NoError(t, err)
	unzipped, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, plain.Data, unzipped)

	bzBlob, err := e.PackageIndex(ctx, "alpha", "main", "amd64", CompressionBzip2, false)
	require.NoError(t, err)
	unbzipped, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(bzBlob.Data)))
	require.NoError(t, err)
	assert.Equal(t, plain.Data, unbzipped)
}

func TestArchRelease(t *testing.T) {
	e := NewEngine(newFakeCatalog())
	blob := e.ArchRelease("amd64")
	want := "Archive: reliquary\nComponent: main\nOrigin: reliquary\nLabel: reliquary\nArchitecture: amd64"
	assert.Equal(t, want, string(blob.Data))
	assert.Equal(t, int64(len(want)), blob.Size)
}

func TestArchitectures(t *testing.T) {
	fc := newFakeCatalog()
	fc.relics[1] = []catalog.Relic{
		{ID: 1, IndexID: 1, Name: "tool_1.0_amd64.deb"},
		{ID: 2, IndexID: 1, Name: "tool_1.0_i386.deb"},
		{ID: 3, IndexID: 1, Name: "other_2.0_amd64.deb"},
		{ID: 4, IndexID: 1, Name: "notadeb.txt"},
		{ID: 5, IndexID: 1, Name: "src_1.0.orig.tar.gz"},
	}
	e := NewEngine(fc)

	arches, err := e.Architectures(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"amd64", "i386"}, arches)
}

func TestDistRelease(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCatalog()
	fc.debs = []catalog.RelicDeb{deb(1, "tool", "amd64", 100, nil)}
	fc.relics[1] = []catalog.Relic{
		{ID: 1, IndexID: 1, Name: "tool_1.0_amd64.deb"},
	}
	e := NewEngine(fc)

	data, err := e.DistRelease(ctx, 1, "alpha", "main")
	require.NoError(t, err)
	text := string(data)
	lines := strings.Split(text, "\n")

	assert.Equal(t, "Suite: stable", lines[0])
	assert.Equal(t, "Codename: reliquary", lines[1])
	assert.Equal(t, "Origin: reliquary", lines[2])
	assert.Equal(t, "Architectures: amd64", lines[3])
	assert.Equal(t, "Components: main", lines[4])
	assert.Regexp(t, `^Date: [A-Z][a-z]{2}, [A-Z][a-z]{2} \d{4} \d{2}:\d{2}:\d{2} \+0000$`, lines[5])
	assert.Equal(t, "Acquire-By-Hash: no", lines[len(lines)-1])

	// Each digest section lists the three Packages variants and the
	// per-architecture Release, with right-aligned sizes.
	for _, section := range []string{"MD5Sum:", "SHA1:", "SHA256:"} {
		assert.Contains(t, lines, section)
	}
	entry := regexp.MustCompile(`^ [0-9a-f]+ {1,14}\d+ main/binary-amd64/(Packages(\.gz|\.bz2)?|Release)$`)
	var entries int
	for _, line := range lines {
		if entry.MatchString(line) {
			entries++
		}
	}
	assert.Equal(t, 12, entries)

	// Generating the Release primed the cache for every variant.
	for _, comp := range Compressions {
		assert.Contains(t, fc.cache, "alpha-main-amd64-"+string(comp))
	}
}

func TestDistReleaseNoArchitectures(t *testing.T) {
	e := NewEngine(newFakeCatalog())
	data, err := e.DistRelease(context.Background(), 1, "alpha", "main")
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Architectures: \n")
	assert.Contains(t, text, "MD5Sum:\n\nSHA1:\n\nSHA256:\n\nAcquire-By-Hash: no")
}
