package reindex

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aptly-dev/aptly/deb"
	"github.com/aptly-dev/aptly/utils"

	"github.com/reliquary/reliquary/internal/catalog"
)

// MissingFieldError reports a .deb whose control file lacks a field required
// for the package index. Such packages stay on disk but are not indexed.
type MissingFieldError struct {
	Relic string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s skipped for deb info: %q not found in control", e.Relic, e.Field)
}

// ExtractDebInfo reads the control file and whole-file digests of a .deb on
// disk and assembles the catalog row for it.
func ExtractDebInfo(path, indexName, relicName string, relicID int64) (*catalog.DebInfo, error) {
	stanza, err := deb.GetControlFileFromDeb(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	checksums, err := utils.ChecksumsForFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to calculate checksums: %w", path, err)
	}
	return debInfoFromControl(stanza, checksums, indexName, relicName, relicID)
}

// debInfoFromControl maps control fields onto a DebInfo. Field lookups are
// case-insensitive since control files are not consistent about casing.
func debInfoFromControl(stanza deb.Stanza, checksums utils.ChecksumInfo, indexName, relicName string, relicID int64) (*catalog.DebInfo, error) {
	info := &catalog.DebInfo{
		RelicID: relicID,
		// Relative to the repository root, /api/v1/<channel>/.
		Filename: "pool/" + indexName + "/" + relicName,
		MD5Sum:   checksums.MD5,
		SHA1:     checksums.SHA1,
		SHA256:   checksums.SHA256,
		SHA512:   checksums.SHA512,

		Package:        stanzaGet(stanza, "Package"),
		Source:         stanzaGet(stanza, "Source"),
		Version:        stanzaGet(stanza, "Version"),
		Section:        stanzaGet(stanza, "Section"),
		Priority:       stanzaGet(stanza, "Priority"),
		Architecture:   stanzaGet(stanza, "Architecture"),
		Essential:      stanzaGet(stanza, "Essential"),
		Depends:        stanzaGet(stanza, "Depends"),
		Recommends:     stanzaGet(stanza, "Recommends"),
		Suggests:       stanzaGet(stanza, "Suggests"),
		Enhances:       stanzaGet(stanza, "Enhances"),
		PreDepends:     stanzaGet(stanza, "Pre-Depends"),
		InstalledSize:  stanzaGet(stanza, "Installed-Size"),
		Maintainer:     stanzaGet(stanza, "Maintainer"),
		Description:    stanzaGet(stanza, "Description"),
		DescriptionMD5: stanzaGet(stanza, "Description-md5"),
		Homepage:       stanzaGet(stanza, "Homepage"),
		BuiltUsing:     stanzaGet(stanza, "Built-Using"),
		MultiArch:      stanzaGet(stanza, "Multi-Arch"),
	}

	for _, req := range []struct {
		field string
		value string
	}{
		{"Package", info.Package},
		{"Version", info.Version},
		{"Architecture", info.Architecture},
		{"Maintainer", info.Maintainer},
		{"Description", info.Description},
	} {
		if req.value == "" {
			return nil, &MissingFieldError{Relic: relicName, Field: req.field}
		}
	}

	if info.DescriptionMD5 == "" {
		info.DescriptionMD5 = descriptionMD5(info.Description)
	}
	return info, nil
}

// descriptionMD5 computes the Description-md5 value for packages that do not
// carry one. The digest covers the description with exactly one trailing
// newline.
func descriptionMD5(description string) string {
	if !strings.HasSuffix(description, "\n") {
		description += "\n"
	}
	sum := md5.Sum([]byte(description))
	return hex.EncodeToString(sum[:])
}

func stanzaGet(s deb.Stanza, key string) string {
	if v, ok := s[key]; ok {
		return v
	}
	for k, v := range s {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
