package catalog

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v8"
	"github.com/jackc/pgx/v5"
)

// UpsertDebInfo inserts or replaces the control metadata for a relic. The
// 1:1 relationship with the relic is enforced by a uniqueness constraint on
// relic_id.
func (s *Store) UpsertDebInfo(ctx context.Context, info *DebInfo) error {
	const query = `
	INSERT INTO debinfos (
		relic_id, filename, md5sum, sha1, sha256, sha512,
		package, source, version, section, priority, architecture,
		essential, depends, recommends, suggests, enhances, pre_depends,
		installed_size, maintainer, description, description_md5,
		homepage, built_using, multi_arch
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17, $18,
		$19, $20, $21, $22,
		$23, $24, $25
	)
	ON CONFLICT (relic_id) DO UPDATE SET
		filename = EXCLUDED.filename,
		md5sum = EXCLUDED.md5sum,
		sha1 = EXCLUDED.sha1,
		sha256 = EXCLUDED.sha256,
		sha512 = EXCLUDED.sha512,
		package = EXCLUDED.package,
		source = EXCLUDED.source,
		version = EXCLUDED.version,
		section = EXCLUDED.section,
		priority = EXCLUDED.priority,
		architecture = EXCLUDED.architecture,
		essential = EXCLUDED.essential,
		depends = EXCLUDED.depends,
		recommends = EXCLUDED.recommends,
		suggests = EXCLUDED.suggests,
		enhances = EXCLUDED.enhances,
		pre_depends = EXCLUDED.pre_depends,
		installed_size = EXCLUDED.installed_size,
		maintainer = EXCLUDED.maintainer,
		description = EXCLUDED.description,
		description_md5 = EXCLUDED.description_md5,
		homepage = EXCLUDED.homepage,
		built_using = EXCLUDED.built_using,
		multi_arch = EXCLUDED.multi_arch;
	`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, query,
		info.RelicID, info.Filename, info.MD5Sum, info.SHA1, info.SHA256, info.SHA512,
		info.Package, info.Source, info.Version, info.Section, info.Priority, info.Architecture,
		info.Essential, info.Depends, info.Recommends, info.Suggests, info.Enhances, info.PreDepends,
		info.InstalledSize, info.Maintainer, info.Description, info.DescriptionMD5,
		info.Homepage, info.BuiltUsing, info.MultiArch,
	)
	if err != nil {
		return fmt.Errorf("catalog: failed to upsert debinfo for relic %d: %w", info.RelicID, err)
	}
	return tx.Commit(ctx)
}

// RelicDeb pairs a relic with its control metadata for Packages generation.
type RelicDeb struct {
	Relic Relic
	Deb   DebInfo
}

// DebsByArch joins relics with their control metadata, filtered by a
// case-insensitive substring match on the Architecture field. Callers must
// post-filter by exact membership in the whitespace-split architecture list;
// the substring match only bounds the candidate set.
func (s *Store) DebsByArch(ctx context.Context, arch string) ([]RelicDeb, error) {
	query, args, err := psql.From("relics").
		Join(goqu.T("debinfos"), goqu.On(goqu.Ex{"relics.id": goqu.I("debinfos.relic_id")})).
		Select(
			"relics.id", "relics.index_id", "relics.name", "relics.mtime", "relics.size",
			"debinfos.filename", "debinfos.md5sum", "debinfos.sha1", "debinfos.sha256", "debinfos.sha512",
			"debinfos.package", "debinfos.source", "debinfos.version", "debinfos.section",
			"debinfos.priority", "debinfos.architecture", "debinfos.essential", "debinfos.depends",
			"debinfos.recommends", "debinfos.suggests", "debinfos.enhances", "debinfos.pre_depends",
			"debinfos.installed_size", "debinfos.maintainer", "debinfos.description",
			"debinfos.description_md5", "debinfos.homepage", "debinfos.built_using", "debinfos.multi_arch",
		).
		Where(goqu.I("debinfos.architecture").ILike("%" + arch + "%")).
		Order(goqu.I("relics.id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to build debs query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: debs query failed: %w", err)
	}
	defer rows.Close()

	var out []RelicDeb
	for rows.Next() {
		var rd RelicDeb
		if err := scanRelicDeb(rows, &rd); err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

func scanRelicDeb(r pgx.Rows, rd *RelicDeb) error {
	return r.Scan(
		&rd.Relic.ID, &rd.Relic.IndexID, &rd.Relic.Name, &rd.Relic.MTime, &rd.Relic.Size,
		&rd.Deb.Filename, &rd.Deb.MD5Sum, &rd.Deb.SHA1, &rd.Deb.SHA256, &rd.Deb.SHA512,
		&rd.Deb.Package, &rd.Deb.Source, &rd.Deb.Version, &rd.Deb.Section,
		&rd.Deb.Priority, &rd.Deb.Architecture, &rd.Deb.Essential, &rd.Deb.Depends,
		&rd.Deb.Recommends, &rd.Deb.Suggests, &rd.Deb.Enhances, &rd.Deb.PreDepends,
		&rd.Deb.InstalledSize, &rd.Deb.Maintainer, &rd.Deb.Description,
		&rd.Deb.DescriptionMD5, &rd.Deb.Homepage, &rd.Deb.BuiltUsing, &rd.Deb.MultiArch,
	)
}
