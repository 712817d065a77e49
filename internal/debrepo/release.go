package debrepo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/reliquary/reliquary/relname"
)

// releaseDateLayout is the Date field format of the distribution Release
// file. The offset is fixed since the timestamp is always UTC.
const releaseDateLayout = "Mon, Jan 2006 15:04:05 +0000"

// ArchRelease returns the per-architecture Release file. It is small and
// fixed apart from the architecture, so it is generated fresh every time and
// never cached.
func (e *Engine) ArchRelease(arch string) *Blob {
	data := fmt.Sprintf(`Archive: reliquary
Component: main
Origin: reliquary
Label: reliquary
Architecture: %s`, arch)
	return seal([]byte(data))
}

// Architectures returns the sorted set of architectures appearing in the
// Debian-style file names of an index. Relics whose names do not parse, or
// parse without an architecture part, are ignored.
func (e *Engine) Architectures(ctx context.Context, indexID int64) ([]string, error) {
	relics, err := e.cat.RelicsByIndex(ctx, indexID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, relic := range relics {
		parts, ok := relname.SplitDebian(relic.Name)
		if !ok || parts.Arch == "" {
			continue
		}
		seen[parts.Arch] = true
	}
	arches := make([]string, 0, len(seen))
	for a := range seen {
		arches = append(arches, a)
	}
	sort.Strings(arches)
	return arches, nil
}

// DistRelease renders the distribution-level Release file for an index. The
// digest sections cover the Packages variants and the per-architecture
// Release of every architecture in the index; generating them here also
// primes the metadata cache.
func (e *Engine) DistRelease(ctx context.Context, indexID int64, channel, index string) ([]byte, error) {
	arches, err := e.Architectures(ctx, indexID)
	if err != nil {
		return nil, err
	}

	lines := []string{
		"Suite: stable",
		"Codename: reliquary",
		"Origin: reliquary",
		"Architectures: " + strings.Join(arches, " "),
		"Components: main",
		"Date: " + time.Now().UTC().Format(releaseDateLayout),
	}

	var md5sums, sha1s, sha256s []string
	record := func(b *Blob, path string) {
		md5sums = append(md5sums, fmt.Sprintf(" %s %15d %s", b.MD5Sum, b.Size, path))
		sha1s = append(sha1s, fmt.Sprintf(" %s %15d %s", b.SHA1, b.Size, path))
		sha256s = append(sha256s, fmt.Sprintf(" %s %15d %s", b.SHA256, b.Size, path))
	}

	for _, arch := range arches {
		for _, comp := range Compressions {
			blob, err := e.PackageIndex(ctx, channel, index, arch, comp, false)
			if err != nil {
				slog.Error("failed to generate package index for release",
					"channel", channel, "index", index, "arch", arch, "compression", string(comp), "error", err)
				continue
			}
			path := "main/binary-" + arch + "/Packages"
			switch comp {
			case CompressionGzip:
				path += ".gz"
			case CompressionBzip2:
				path += ".bz2"
			}
			record(blob, path)
		}
		record(e.ArchRelease(arch), "main/binary-"+arch+"/Release")
	}

	lines = append(lines,
		"MD5Sum:", strings.Join(md5sums, "\n"),
		"SHA1:", strings.Join(sha1s, "\n"),
		"SHA256:", strings.Join(sha256s, "\n"),
		"Acquire-By-Hash: no",
	)
	return []byte(strings.Join(lines, "\n")), nil
}
