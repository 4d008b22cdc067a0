package index

import (
	"context"
	"database/sql"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/seaf"
)

type repoDirModel struct {
	bun.BaseModel `bun:"table:repo_dirs"`

	Account string `bun:"account,pk"`
	RepoID  string `bun:"repo_id,pk"`
	Dir     string `bun:"dir,notnull"`
}

type direntModel struct {
	bun.BaseModel `bun:"table:dirents"`

	Account   string `bun:"account,pk"`
	RepoID    string `bun:"repo_id,pk"`
	Path      string `bun:"path,pk"`
	ContentID string `bun:"content_id,notnull"`
}

type cachedFileModel struct {
	bun.BaseModel `bun:"table:cached_files"`

	Account  string `bun:"account,pk"`
	RepoID   string `bun:"repo_id,pk"`
	Path     string `bun:"path,pk"`
	RepoName string `bun:"repo_name,notnull"`
	FileID   string `bun:"file_id,notnull"`
}

type starredModel struct {
	bun.BaseModel `bun:"table:starred_files"`

	Account string `bun:"account,pk"`
	Content []byte `bun:"content"`
}

// DB is an Index stored in a SQLite database.
type DB struct {
	*bun.DB
}

var _ Index = &DB{}

// Open opens (and if necessary creates) the SQLite index at path.
func Open(ctx context.Context, path string) (*DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, errors.Wrap(err, "open index")
	}
	// one connection, or concurrent writers get "database is locked"
	sqldb.SetMaxOpenConns(1)

	db := &DB{DB: bun.NewDB(sqldb, sqlitedialect.New())}
	if err := db.init(ctx); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	log.Debugf("opened index %v", path)
	return db, nil
}

func (db *DB) init(ctx context.Context) error {
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "exec %q", pragma)
		}
	}

	models := []interface{}{
		(*repoDirModel)(nil),
		(*direntModel)(nil),
		(*cachedFileModel)(nil),
		(*starredModel)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "create table")
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*repoDirModel)(nil)).
		Index("repo_dirs_account_dir").
		Unique().
		IfNotExists().
		Column("account", "dir").
		Exec(ctx); err != nil {
		return errors.Wrap(err, "create index")
	}
	if _, err := db.NewCreateIndex().
		Model((*direntModel)(nil)).
		Index("dirents_account_content").
		IfNotExists().
		Column("account", "content_id").
		Exec(ctx); err != nil {
		return errors.Wrap(err, "create index")
	}
	return nil
}

// --- Repo directories ---

func (db *DB) RepoDir(ctx context.Context, account, repoID string) (string, bool, error) {
	var m repoDirModel
	err := db.NewSelect().
		Model(&m).
		Where("account = ?", account).
		Where("repo_id = ?", repoID).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WithStack(err)
	}
	return m.Dir, true, nil
}

func (db *DB) RepoDirTaken(ctx context.Context, account, dir string) (bool, error) {
	ok, err := db.NewSelect().
		Model((*repoDirModel)(nil)).
		Where("account = ?", account).
		Where("dir = ?", dir).
		Exists(ctx)
	return ok, errors.WithStack(err)
}

func (db *DB) SaveRepoDir(ctx context.Context, account, repoID, dir string) error {
	_, err := db.NewInsert().
		Model(&repoDirModel{Account: account, RepoID: repoID, Dir: dir}).
		Exec(ctx)
	return errors.Wrapf(err, "save repo dir %q", dir)
}

// --- Directory listings ---

func (db *DB) ContentID(ctx context.Context, account, repoID, path string) (seaf.ID, bool, error) {
	return db.contentIDWith(ctx, db.DB, account, repoID, path)
}

func (db *DB) contentIDWith(ctx context.Context, idb bun.IDB, account, repoID, path string) (seaf.ID, bool, error) {
	var m direntModel
	err := idb.NewSelect().
		Model(&m).
		Where("account = ?", account).
		Where("repo_id = ?", repoID).
		Where("path = ?", path).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WithStack(err)
	}
	return seaf.ID(m.ContentID), true, nil
}

func (db *DB) SetContentID(ctx context.Context, account, repoID, path string, id seaf.ID) (seaf.ID, error) {
	var old seaf.ID
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		old, _, err = db.contentIDWith(ctx, tx, account, repoID, path)
		if err != nil {
			return err
		}

		_, err = tx.NewInsert().
			Model(&direntModel{Account: account, RepoID: repoID, Path: path, ContentID: id.String()}).
			On("CONFLICT (account, repo_id, path) DO UPDATE").
			Set("content_id = EXCLUDED.content_id").
			Exec(ctx)
		return err
	})
	return old, errors.Wrap(err, "set content id")
}

func (db *DB) RemoveContentID(ctx context.Context, account, repoID, path string) (seaf.ID, error) {
	var old seaf.ID
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		old, _, err = db.contentIDWith(ctx, tx, account, repoID, path)
		if err != nil {
			return err
		}

		_, err = tx.NewDelete().
			Model((*direntModel)(nil)).
			Where("account = ?", account).
			Where("repo_id = ?", repoID).
			Where("path = ?", path).
			Exec(ctx)
		return err
	})
	return old, errors.Wrap(err, "remove content id")
}

func (db *DB) ContentRefs(ctx context.Context, account string, id seaf.ID) (int, error) {
	n, err := db.NewSelect().
		Model((*direntModel)(nil)).
		Where("account = ?", account).
		Where("content_id = ?", id.String()).
		Count(ctx)
	return n, errors.WithStack(err)
}

func (db *DB) ContentIDs(ctx context.Context, account string) (seaf.IDSet, error) {
	var ids []string
	err := db.NewSelect().
		Model((*direntModel)(nil)).
		ColumnExpr("DISTINCT content_id").
		Where("account = ?", account).
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	set := seaf.NewIDSet()
	for _, id := range ids {
		set.Insert(seaf.ID(id))
	}
	return set, nil
}

func (db *DB) RemoveContentIDs(ctx context.Context, account string) error {
	_, err := db.NewDelete().
		Model((*direntModel)(nil)).
		Where("account = ?", account).
		Exec(ctx)
	return errors.WithStack(err)
}

// --- Cached files ---

func (db *DB) CachedFile(ctx context.Context, account, repoID, path string) (*seaf.CachedFile, error) {
	var m cachedFileModel
	err := db.NewSelect().
		Model(&m).
		Where("account = ?", account).
		Where("repo_id = ?", repoID).
		Where("path = ?", path).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	f := m.cachedFile()
	return &f, nil
}

func (db *DB) CachedFiles(ctx context.Context, account string) ([]seaf.CachedFile, error) {
	var models []cachedFileModel
	err := db.NewSelect().
		Model(&models).
		Where("account = ?", account).
		Order("repo_id", "path").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	files := make([]seaf.CachedFile, 0, len(models))
	for _, m := range models {
		files = append(files, m.cachedFile())
	}
	return files, nil
}

func (m cachedFileModel) cachedFile() seaf.CachedFile {
	return seaf.CachedFile{
		Account:  m.Account,
		RepoID:   m.RepoID,
		RepoName: m.RepoName,
		Path:     m.Path,
		FileID:   m.FileID,
	}
}

func (db *DB) SaveCachedFile(ctx context.Context, f seaf.CachedFile) error {
	_, err := db.NewInsert().
		Model(&cachedFileModel{
			Account:  f.Account,
			RepoID:   f.RepoID,
			Path:     f.Path,
			RepoName: f.RepoName,
			FileID:   f.FileID,
		}).
		On("CONFLICT (account, repo_id, path) DO UPDATE").
		Set("repo_name = EXCLUDED.repo_name").
		Set("file_id = EXCLUDED.file_id").
		Exec(ctx)
	return errors.Wrap(err, "save cached file")
}

func (db *DB) RemoveCachedFile(ctx context.Context, account, repoID, path string) error {
	_, err := db.NewDelete().
		Model((*cachedFileModel)(nil)).
		Where("account = ?", account).
		Where("repo_id = ?", repoID).
		Where("path = ?", path).
		Exec(ctx)
	return errors.WithStack(err)
}

// --- Starred files ---

func (db *DB) StarredFiles(ctx context.Context, account string) ([]byte, error) {
	var m starredModel
	err := db.NewSelect().
		Model(&m).
		Where("account = ?", account).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return m.Content, nil
}

func (db *DB) SaveStarredFiles(ctx context.Context, account string, raw []byte) error {
	_, err := db.NewInsert().
		Model(&starredModel{Account: account, Content: raw}).
		On("CONFLICT (account) DO UPDATE").
		Set("content = EXCLUDED.content").
		Exec(ctx)
	return errors.Wrap(err, "save starred files")
}

func (db *DB) Close() error {
	return db.DB.Close()
}
