// Package postgres provides a PostgreSQL-backed search index of folder
// entries, queried with condition trees.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/condition"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// MaxResults caps Search.
const MaxResults = 1000

// Store is a PostgreSQL search index.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens the index database.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, log: logging.Named("index")}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs the embedded schema migrations in name order.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		s.log.Info("running migration", zap.String("file", path.Base(f)))
		content, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

const upsertSQL = `INSERT INTO items (id, folder, name, size, modified, type, attributes, is_dir, indexed_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	 ON CONFLICT (id) DO UPDATE SET
		folder = EXCLUDED.folder,
		name = EXCLUDED.name,
		size = EXCLUDED.size,
		modified = EXCLUDED.modified,
		type = EXCLUDED.type,
		attributes = EXCLUDED.attributes,
		is_dir = EXCLUDED.is_dir,
		indexed_at = NOW()`

// Upsert indexes entries of folder and removes rows of folder that are no
// longer listed.
func (s *Store) Upsert(ctx context.Context, folder string, entries []*models.Entry) error {
	start := time.Now()
	defer func() { metrics.RecordIndexQuery("upsert", time.Since(start)) }()

	folder = normalizeFolder(folder)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		var modified sql.NullTime
		if !e.ModTime.IsZero() {
			modified = sql.NullTime{Time: e.ModTime, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, string(e.ID), folder, e.Name, e.Size, modified,
			e.Kind(), int64(e.State&^models.ControlOwned), e.IsDir); err != nil {
			return fmt.Errorf("upsert %s: %w", e.ID, err)
		}
		ids = append(ids, string(e.ID))
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM items WHERE folder = $1 AND NOT (id = ANY($2))`, folder, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("prune %s: %w", folder, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	pruned, _ := res.RowsAffected()
	s.log.Debug("indexed folder",
		zap.String("folder", folder),
		zap.Int("entries", len(entries)),
		zap.Int64("pruned", pruned))
	return nil
}

// Remove deletes one entry.
func (s *Store) Remove(ctx context.Context, id models.Identity) error {
	start := time.Now()
	defer func() { metrics.RecordIndexQuery("remove", time.Since(start)) }()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, string(id)); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

// Apply keeps the index current with one change event of folder.
func (s *Store) Apply(ctx context.Context, folder string, ev models.Event) error {
	switch ev.Kind {
	case models.EventRemoved:
		return s.Remove(ctx, ev.ID)
	case models.EventAdded, models.EventUpdated:
		if ev.Entry == nil {
			return nil
		}
		return s.upsertOne(ctx, folder, ev.Entry)
	case models.EventReset:
		return s.Upsert(ctx, folder, ev.Entries)
	}
	return nil
}

func (s *Store) upsertOne(ctx context.Context, folder string, e *models.Entry) error {
	var modified sql.NullTime
	if !e.ModTime.IsZero() {
		modified = sql.NullTime{Time: e.ModTime, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, upsertSQL, string(e.ID), normalizeFolder(folder), e.Name, e.Size,
		modified, e.Kind(), int64(e.State&^models.ControlOwned), e.IsDir)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.ID, err)
	}
	return nil
}

// Search returns entries under folder ("" for all) matching query.
func (s *Store) Search(ctx context.Context, folder string, query *condition.Node, limit int) ([]*models.Entry, error) {
	start := time.Now()
	defer func() { metrics.RecordIndexQuery("search", time.Since(start)) }()

	q, args, err := searchQuery(folder, query, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []*models.Entry
	for rows.Next() {
		var (
			e        models.Entry
			id       string
			modified sql.NullTime
			attrs    int64
		)
		if err := rows.Scan(&id, &e.Name, &e.Size, &modified, &e.IsDir, &attrs); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		e.ID = models.Identity(id)
		if modified.Valid {
			e.ModTime = modified.Time
		}
		e.State = models.StateFlags(attrs)
		results = append(results, &e)
	}
	return results, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchQuery builds the SELECT for Search.
func searchQuery(folder string, query *condition.Node, limit int) (string, []any, error) {
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}

	var args []any
	var where []string
	if folder != "" && normalizeFolder(folder) != "/" {
		f := normalizeFolder(folder)
		args = append(args, f, likeEscaper.Replace(f)+"/%")
		where = append(where, "(folder = $1 OR folder LIKE $2)")
	}

	clause, cargs, err := condition.ToSQL(query, len(args)+1)
	if err != nil {
		return "", nil, fmt.Errorf("translate query: %w", err)
	}
	where = append(where, clause)
	args = append(args, cargs...)
	args = append(args, limit)

	q := fmt.Sprintf(`SELECT id, name, size, modified, is_dir, attributes
	 FROM items
	 WHERE %s
	 ORDER BY is_dir DESC, lower(name), id
	 LIMIT $%d`, strings.Join(where, " AND "), len(args))
	return q, args, nil
}

func normalizeFolder(folder string) string {
	if folder == "" {
		return "/"
	}
	if !strings.HasPrefix(folder, "/") {
		folder = "/" + folder
	}
	if folder == "/" {
		return folder
	}
	return strings.TrimSuffix(folder, "/")
}
