package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore connects to the database named by RELIQUARY_TEST_DATABASE, or
// skips the test when the variable is unset. Migrations run on connect, so a
// fresh database works out of the box.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("RELIQUARY_TEST_DATABASE")
	if dsn == "" {
		t.Skip("set RELIQUARY_TEST_DATABASE to run database tests")
	}
	s, err := Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSweepRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	chID, err := s.UpsertChannel(ctx, "sweep-test-alpha")
	require.NoError(t, err)
	idxID, err := s.UpsertIndex(ctx, chID, "noble")
	require.NoError(t, err)
	relID, err := s.UpsertRelic(ctx, idxID, "tool_1.0_amd64.deb", "1700000000.5", 1234)
	require.NoError(t, err)

	ch, err := s.ChannelByName(ctx, "sweep-test-alpha")
	require.NoError(t, err)
	assert.Equal(t, chID, ch.ID)
	assert.False(t, ch.Dirty)

	idx, err := s.IndexByNames(ctx, "sweep-test-alpha", "noble")
	require.NoError(t, err)
	assert.Equal(t, idxID, idx.ID)

	rel, err := s.RelicByName(ctx, idxID, "tool_1.0_amd64.deb")
	require.NoError(t, err)
	assert.Equal(t, relID, rel.ID)
	assert.Equal(t, "1700000000.5", rel.MTime)
	assert.Equal(t, int64(1234), rel.Size)

	// A second upsert refreshes mtime and size under the same id.
	relID2, err := s.UpsertRelic(ctx, idxID, "tool_1.0_amd64.deb", "1700000001.0", 1250)
	require.NoError(t, err)
	assert.Equal(t, relID, relID2)

	rel, err = s.RelicByName(ctx, idxID, "tool_1.0_amd64.deb")
	require.NoError(t, err)
	assert.Equal(t, "1700000001.0", rel.MTime)

	// Marking everything dirty and deleting simulates the file vanishing
	// between sweeps. The cascade takes the index and relic along.
	require.NoError(t, s.MarkAllDirty(ctx))
	require.NoError(t, s.DeleteDirty(ctx))

	_, err = s.ChannelByName(ctx, "sweep-test-alpha")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.RelicByName(ctx, idxID, "tool_1.0_amd64.deb")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDebInfoByArch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	chID, err := s.UpsertChannel(ctx, "debinfo-test")
	require.NoError(t, err)
	idxID, err := s.UpsertIndex(ctx, chID, "main")
	require.NoError(t, err)

	relID, err := s.UpsertRelic(ctx, idxID, "tool_1.0_amd64.deb", "1700000000.0", 100)
	require.NoError(t, err)
	require.NoError(t, s.UpsertDebInfo(ctx, &DebInfo{
		RelicID:        relID,
		Filename:       "pool/main/tool_1.0_amd64.deb",
		MD5Sum:         "d41d8cd98f00b204e9800998ecf8427e",
		SHA1:           "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		SHA256:         "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SHA512:         "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e",
		Package:        "tool",
		Version:        "1.0",
		Architecture:   "amd64",
		Maintainer:     "Nobody <nobody@example.com>",
		Description:    "a tool",
		DescriptionMD5: "0123456789abcdef0123456789abcdef",
	}))

	allID, err := s.UpsertRelic(ctx, idxID, "data_2.0_all.deb", "1700000000.0", 200)
	require.NoError(t, err)
	require.NoError(t, s.UpsertDebInfo(ctx, &DebInfo{
		RelicID:        allID,
		Filename:       "pool/main/data_2.0_all.deb",
		MD5Sum:         "d41d8cd98f00b204e9800998ecf8427e",
		SHA1:           "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		SHA256:         "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SHA512:         "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e",
		Package:        "data",
		Version:        "2.0",
		Architecture:   "all",
		Maintainer:     "Nobody <nobody@example.com>",
		Description:    "data files",
		DescriptionMD5: "0123456789abcdef0123456789abcdef",
	}))

	debs, err := s.DebsByArch(ctx, "amd64")
	require.NoError(t, err)
	names := make([]string, 0, len(debs))
	for _, d := range debs {
		names = append(names, d.Deb.Package)
	}
	assert.Contains(t, names, "tool")
	assert.NotContains(t, names, "data")

	debs, err = s.DebsByArch(ctx, "all")
	require.NoError(t, err)
	names = names[:0]
	for _, d := range debs {
		names = append(names, d.Deb.Package)
	}
	assert.Contains(t, names, "data")

	// Upserting again replaces the row rather than adding a second one.
	require.NoError(t, s.UpsertDebInfo(ctx, &DebInfo{
		RelicID:        relID,
		Filename:       "pool/main/tool_1.0_amd64.deb",
		MD5Sum:         "d41d8cd98f00b204e9800998ecf8427e",
		SHA1:           "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		SHA256:         "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SHA512:         "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e",
		Package:        "tool",
		Version:        "1.1",
		Architecture:   "amd64",
		Maintainer:     "Nobody <nobody@example.com>",
		Description:    "a tool",
		DescriptionMD5: "0123456789abcdef0123456789abcdef",
	}))
	debs, err = s.DebsByArch(ctx, "amd64")
	require.NoError(t, err)
	count := 0
	for _, d := range debs {
		if d.Relic.ID == relID {
			count++
			assert.Equal(t, "1.1", d.Deb.Version)
		}
	}
	assert.Equal(t, 1, count)

	require.NoError(t, s.MarkAllDirty(ctx))
	require.NoError(t, s.DeleteDirty(ctx))
}

func TestFileCache(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	const key = "cache-test-main-amd64-none"
	_, err := s.CacheGet(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	entry := &CacheEntry{
		Key:    key,
		Value:  []byte("Package: tool\n"),
		MTime:  time.Now().UTC().Truncate(time.Microsecond),
		Size:   14,
		MD5Sum: "d41d8cd98f00b204e9800998ecf8427e",
		SHA1:   "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		SHA256: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	}
	require.NoError(t, s.CachePut(ctx, entry))

	got, err := s.CacheGet(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entry.Value, got.Value)
	assert.Equal(t, entry.Size, got.Size)
	assert.True(t, entry.MTime.Equal(got.MTime))

	// Replacement under the same key.
	entry.Value = []byte("Package: tool\nVersion: 2\n")
	entry.Size = int64(len(entry.Value))
	require.NoError(t, s.CachePut(ctx, entry))
	got, err = s.CacheGet(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entry.Value, got.Value)

	require.NoError(t, s.CacheDelete(ctx, key))
	_, err = s.CacheGet(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine.
	require.NoError(t, s.CacheDelete(ctx, key))
}
