package debrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reliquary/reliquary/internal/catalog"
)

// PackageIndex returns the Packages file for one channel/index/architecture
// in the requested compression, serving from the metadata cache when
// possible. With force set the cached variant is dropped and regenerated.
//
// Compressed variants are derived from the cached uncompressed sibling when
// one exists, so all three variants of a key describe the same package set
// even if packages changed between requests.
func (e *Engine) PackageIndex(ctx context.Context, channel, index, arch string, comp Compression, force bool) (*Blob, error) {
	key := cacheKey(channel, index, arch, comp)

	if force {
		if err := e.cat.CacheDelete(ctx, key); err != nil {
			return nil, err
		}
	} else {
		entry, err := e.cat.CacheGet(ctx, key)
		switch {
		case err == nil:
			cacheCounter.WithLabelValues("hit").Inc()
			return blobFromEntry(entry), nil
		case errors.Is(err, catalog.ErrNotFound):
			cacheCounter.WithLabelValues("miss").Inc()
		default:
			return nil, err
		}
	}

	if comp != CompressionNone {
		entry, err := e.cat.CacheGet(ctx, cacheKey(channel, index, arch, CompressionNone))
		switch {
		case err == nil:
			return e.cacheEncoded(ctx, key, entry.Value, comp)
		case errors.Is(err, catalog.ErrNotFound):
		default:
			return nil, err
		}
	}

	body, err := e.buildPackages(ctx, arch)
	if err != nil {
		return nil, err
	}
	return e.cacheEncoded(ctx, key, body, comp)
}

// cacheEncoded compresses, digests, stores and returns one variant.
func (e *Engine) cacheEncoded(ctx context.Context, key string, body []byte, comp Compression) (*Blob, error) {
	data, err := encode(body, comp)
	if err != nil {
		return nil, err
	}
	blob := seal(data)
	entry := &catalog.CacheEntry{
		Key:    key,
		Value:  blob.Data,
		MTime:  blob.MTime,
		Size:   blob.Size,
		MD5Sum: blob.MD5Sum,
		SHA1:   blob.SHA1,
		SHA256: blob.SHA256,
	}
	if err := e.cat.CachePut(ctx, entry); err != nil {
		return nil, err
	}
	generateCounter.WithLabelValues(string(comp)).Inc()
	return blob, nil
}

// buildPackages renders the uncompressed Packages body for one architecture.
// The candidate set comes from a substring match on the Architecture field,
// so each row is re-checked against the whitespace-split architecture list.
func (e *Engine) buildPackages(ctx context.Context, arch string) ([]byte, error) {
	debs, err := e.cat.DebsByArch(ctx, arch)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, rd := range debs {
		if !architectureListed(rd.Deb.Architecture, arch) {
			continue
		}
		lines = appendParagraph(lines, &rd.Relic, &rd.Deb)
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// architectureListed reports whether arch appears in a control file
// Architecture value, which may list several space-separated architectures.
func architectureListed(field, arch string) bool {
	for _, a := range strings.Fields(field) {
		if strings.ToLower(strings.TrimSpace(a)) == arch {
			return true
		}
	}
	return false
}

// appendParagraph emits one package stanza. Optional fields are skipped when
// empty; Priority rides along with Section, matching the emission the index
// consumers were built against.
func appendParagraph(lines []string, relic *catalog.Relic, d *catalog.DebInfo) []string {
	lines = append(lines, "Package: "+d.Package)
	if d.Source != "" {
		lines = append(lines, "Source: "+d.Source)
	}
	lines = append(lines, "Version: "+d.Version)
	if d.Section != "" {
		lines = append(lines, "Section: "+d.Section)
		lines = append(lines, "Priority: "+d.Priority)
	}
	lines = append(lines, "Architecture: "+d.Architecture)
	if d.Essential != "" {
		lines = append(lines, "Essential: "+d.Essential)
	}
	if d.Depends != "" {
		lines = append(lines, "Depends: "+d.Depends)
	}
	if d.Recommends != "" {
		lines = append(lines, "Recommends: "+d.Recommends)
	}
	if d.Suggests != "" {
		lines = append(lines, "Suggests: "+d.Suggests)
	}
	if d.Enhances != "" {
		lines = append(lines, "Enhances: "+d.Enhances)
	}
	if d.PreDepends != "" {
		lines = append(lines, "Pre-Depends: "+d.PreDepends)
	}
	if d.InstalledSize != "" {
		lines = append(lines, "Installed-Size: "+d.InstalledSize)
	}
	lines = append(lines, "Maintainer: "+d.Maintainer)
	lines = append(lines, "Description: "+d.Description)
	if d.Homepage != "" {
		lines = append(lines, "Homepage: "+d.Homepage)
	}
	if d.BuiltUsing != "" {
		lines = append(lines, "Built-Using: "+d.BuiltUsing)
	}
	lines = append(lines, "Filename: "+d.Filename)
	lines = append(lines, fmt.Sprintf("Size: %d", relic.Size))
	lines = append(lines, "MD5Sum: "+d.MD5Sum)
	lines = append(lines, "SHA1: "+d.SHA1)
	lines = append(lines, "SHA256: "+d.SHA256)
	lines = append(lines, "SHA512: "+d.SHA512)
	lines = append(lines, "Description-md5: "+d.DescriptionMD5)
	if d.MultiArch != "" {
		lines = append(lines, "Multi-Arch: "+d.MultiArch)
	}
	lines = append(lines, "")
	return lines
}
