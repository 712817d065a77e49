// Package relname decodes package names, versions and extensions out of relic
// filenames for the protocol surfaces that need them: CommonJS/npm tarballs,
// PyPI distributions and Debian artifacts.
//
// All functions are pure; they never touch the filesystem or the catalog.
package relname

import (
	"regexp"
	"strings"
)

// commonJSRe matches <name>-<semver>.<tgz|tar.gz> per the CommonJS
// packaging/1.1 convention, with semver 2.0 pre-release and build metadata.
var commonJSRe = regexp.MustCompile(`^([\w\-\._]+)-((?:0|[1-9]\d*)\.(?:0|[1-9]\d*)\.(?:0|[1-9]\d*)(?:-[\da-z\-]+(?:\.[\da-z\-]+)*)?(?:\+[\da-z\-]+(?:\.[\da-z\-]+)*)?)\.((?:tar\.gz)|(?:tgz))$`)

// SplitCommonJS splits a CommonJS tarball name into package, version and
// extension. When the name does not match, the whole name is returned as the
// package with empty version and extension.
func SplitCommonJS(name string) (pkg, version, ext string) {
	m := commonJSRe.FindStringSubmatch(name)
	if m == nil {
		return name, "", ""
	}
	return m[1], m[2], m[3]
}

var (
	// Legacy sdist/egg naming, e.g. pytz-2016.10-py2.4.egg, pytz-2016.10.tar.gz.
	pypiBasicRe = regexp.MustCompile(`^([\w\.\-\_]+)-((?:(?:\d+!)?(?:\d+)(?:\.\d+)*)(?:(?:a|b|rc)?\d+)?(?:\.post\d+)?(?:\.dev\d+)?(?:\+[a-zA-Z0-9\.]+)?)(?:-([\w\.]+))?\.((?:tgz)|(?:tar\.gz)|(?:zip)|(?:tar.bz2)|(?:tbz2)|(?:egg))$`)
	// PEP-491 wheel naming, e.g. zest.releaser-6.7.1-py2.py3-none-any.whl.
	pypiWheelRe = regexp.MustCompile(`^([\w\.\-_]+)-((?:(?:\d+!)?(?:\d+)(?:\.\d+)*)(?:(?:a|b|rc)?\d+)?(?:\.post\d+)?(?:\.dev\d+)?(?:\+[a-zA-Z0-9\.]+)?)(?:-(\d[\w]*))?-((?:[\w]+(?:\.[\w]+)*))-([\w]+)-([\w_]+)\.whl$`)
	// Permissive fallback: a name, a dotted numeric version, and whatever is left.
	pypiSimpleRe = regexp.MustCompile(`^(.*)-(\d+(?:\.\d+)+)(.*)$`)
)

// SplitPyPI splits a Python distribution filename into package, version and
// extension, trying the legacy sdist/egg convention, then PEP-491 wheels,
// then a permissive name-version-rest fallback. When nothing matches, the
// whole name is returned as the package with empty version and extension.
func SplitPyPI(name string) (pkg, version, ext string) {
	if m := pypiBasicRe.FindStringSubmatch(name); m != nil {
		return m[1], m[2], m[4]
	}
	if m := pypiWheelRe.FindStringSubmatch(name); m != nil {
		return m[1], m[2], "whl"
	}
	if m := pypiSimpleRe.FindStringSubmatch(name); m != nil {
		return m[1], m[2], strings.Trim(m[3], ".")
	}
	return name, "", ""
}

var pypiNormalizeRe = regexp.MustCompile(`[-_.]+`)

// NormalizePyPI normalizes a package name per PEP-503: runs of dot, dash and
// underscore collapse to a single dash, lowercased. Idempotent.
func NormalizePyPI(name string) string {
	return strings.ToLower(pypiNormalizeRe.ReplaceAllString(name, "-"))
}

// DebianName is a decoded Debian artifact filename.
type DebianName struct {
	Package string
	Version string
	Arch    string // empty for source artifacts (dsc, orig tarballs, diffs)
	Ext     string // one of deb, dsc, diff.gz, tar.gz, orig.tar.gz
}

// debianRe matches <package>_<version>[_<arch>].<ext> per the Debian source
// control field naming convention.
var debianRe = regexp.MustCompile(`^([a-z0-9+-.][a-z0-9+-.]+?)_([a-z0-9+-.][a-z0-9+-.]+?)(?:_([a-z0-9+-.][a-z0-9+-.]+?))?\.((?:orig\.)?tar\.gz|diff\.gz|dsc|deb)$`)

// SplitDebian splits a Debian artifact filename. The second return value is
// false when the name is not a Debian artifact at all; callers use that to
// skip non-Debian relics during architecture enumeration.
func SplitDebian(name string) (DebianName, bool) {
	m := debianRe.FindStringSubmatch(name)
	if m == nil {
		return DebianName{}, false
	}
	return DebianName{Package: m[1], Version: m[2], Arch: m[3], Ext: m[4]}, true
}
