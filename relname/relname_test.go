package relname

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommonJS(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		pkg     string
		version string
		ext     string
	}{
		{
			name:    "plain tgz",
			in:      "left-pad-1.3.0.tgz",
			pkg:     "left-pad",
			version: "1.3.0",
			ext:     "tgz",
		},
		{
			name:    "tar.gz extension",
			in:      "express-4.17.1.tar.gz",
			pkg:     "express",
			version: "4.17.1",
			ext:     "tar.gz",
		},
		{
			name:    "prerelease",
			in:      "lodash-4.0.0-rc.1.tgz",
			pkg:     "lodash",
			version: "4.0.0-rc.1",
			ext:     "tgz",
		},
		{
			name:    "build metadata",
			in:      "thing-1.0.0+build.55.tgz",
			pkg:     "thing",
			version: "1.0.0+build.55",
			ext:     "tgz",
		},
		{
			name: "leading zeros rejected",
			in:   "pkg-01.2.3.tgz",
			pkg:  "pkg-01.2.3.tgz",
		},
		{
			name: "no version",
			in:   "README.md",
			pkg:  "README.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, version, ext := SplitCommonJS(tt.in)
			assert.Equal(t, tt.pkg, pkg)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestSplitPyPI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		pkg     string
		version string
		ext     string
	}{
		{
			name:    "sdist tar.gz",
			in:      "pytz-2016.10.tar.gz",
			pkg:     "pytz",
			version: "2016.10",
			ext:     "tar.gz",
		},
		{
			name:    "zip sdist",
			in:      "pytz-2016.10.zip",
			pkg:     "pytz",
			version: "2016.10",
			ext:     "zip",
		},
		{
			name:    "egg with python version",
			in:      "pytz-2016.10-py2.4.egg",
			pkg:     "pytz",
			version: "2016.10",
			ext:     "egg",
		},
		{
			name:    "wheel",
			in:      "zest.releaser-6.7.1-py2.py3-none-any.whl",
			pkg:     "zest.releaser",
			version: "6.7.1",
			ext:     "whl",
		},
		{
			name:    "wheel with build tag",
			in:      "zest.releaser-6.7.1-1buildtag-py2.py3.py27.py35-none-any.whl",
			pkg:     "zest.releaser",
			version: "6.7.1",
			ext:     "whl",
		},
		{
			name:    "fallback dotted version",
			in:      "weird-name-1.2.3.custom",
			pkg:     "weird-name",
			version: "1.2.3",
			ext:     "custom",
		},
		{
			name: "unparseable",
			in:   "notapackage",
			pkg:  "notapackage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, version, ext := SplitPyPI(tt.in)
			assert.Equal(t, tt.pkg, pkg)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestNormalizePyPI(t *testing.T) {
	assert.Equal(t, "zest-releaser", NormalizePyPI("zest.releaser"))
	assert.Equal(t, "my-pkg", NormalizePyPI("My__Pkg"))
	assert.Equal(t, "a-b-c", NormalizePyPI("a-_.b...c"))
}

func TestNormalizePyPIIdempotent(t *testing.T) {
	for _, name := range []string{"zest.releaser", "My__Pkg", "already-normal", "A.B_C-D"} {
		once := NormalizePyPI(name)
		assert.Equal(t, once, NormalizePyPI(once), "normalize must be idempotent for %q", name)
	}
}

func TestSplitDebian(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want DebianName
		ok   bool
	}{
		{
			name: "binary package",
			in:   "hello_1.0_amd64.deb",
			want: DebianName{Package: "hello", Version: "1.0", Arch: "amd64", Ext: "deb"},
			ok:   true,
		},
		{
			name: "arch all",
			in:   "docs_2.1.3_all.deb",
			want: DebianName{Package: "docs", Version: "2.1.3", Arch: "all", Ext: "deb"},
			ok:   true,
		},
		{
			name: "dsc without arch",
			in:   "hello_1.0.dsc",
			want: DebianName{Package: "hello", Version: "1.0", Ext: "dsc"},
			ok:   true,
		},
		{
			name: "orig tarball",
			in:   "hello_1.0.orig.tar.gz",
			want: DebianName{Package: "hello", Version: "1.0", Ext: "orig.tar.gz"},
			ok:   true,
		},
		{
			name: "diff",
			in:   "hello_1.0-1.diff.gz",
			want: DebianName{Package: "hello", Version: "1.0-1", Ext: "diff.gz"},
			ok:   true,
		},
		{
			name: "not a debian artifact",
			in:   "left-pad-1.3.0.tgz",
			ok:   false,
		},
		{
			name: "no underscore",
			in:   "hello.deb",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SplitDebian(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// The parsed components of a relic name laid down by the reindexer must
// reconstruct the original filename, modulo the known extension alternates.
func TestSplitDebianRoundTrip(t *testing.T) {
	for _, name := range []string{
		"hello_1.0_amd64.deb",
		"tool_0.9.1-2_arm64.deb",
		"hello_1.0.orig.tar.gz",
		"hello_1.0.dsc",
	} {
		dn, ok := SplitDebian(name)
		require.True(t, ok, name)
		rebuilt := dn.Package + "_" + dn.Version
		if dn.Arch != "" {
			rebuilt += "_" + dn.Arch
		}
		rebuilt += "." + dn.Ext
		assert.Equal(t, name, rebuilt)
	}
}
