package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"

	"github.com/abhisek/algebrix/internal/config"
	"github.com/abhisek/algebrix/internal/logging"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the durable SQLite backend.
type Store struct {
	db     *sql.DB
	drv    *entsql.Driver
	seq    *sequenceCounter
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a backend.
type Option func(*options)

type options struct {
	logger *zap.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for skipped records and other warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the time source used for importedAt and row timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNop(o.logger)
	return o
}

// OpenBackend opens the backend selected by cfg.Driver. An empty sqlite path
// resolves to DefaultDBPath.
func OpenBackend(cfg config.StoreConfig, opts ...Option) (Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(opts...), nil
	case config.DriverSQLite, "":
		path := cfg.Path
		if path == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		} else if err := ensureDir(path); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		return OpenFile(path, opts...)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// OpenFile opens the SQLite database file at path with the recommended pragmas.
func OpenFile(path string, opts ...Option) (*Store, error) {
	return Open(FileDSN(path), opts...)
}

// FileDSN builds a modernc.org/sqlite DSN for path. Pragmas go in the DSN so
// every pooled connection gets them, not just the first.
func FileDSN(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"
}

// Open creates a Store connected to the SQLite database at dsn and ensures
// the schema exists.
func Open(dsn string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	drv := entsql.OpenDB(dialect.SQLite, db)
	ctx := context.Background()

	if err := ensureSchema(ctx, drv); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	seq, err := newSequenceCounter(ctx, drv)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, drv: drv, seq: seq, logger: o.logger, now: o.now}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

func (s *Store) Batches() BatchRepo     { return s.repos(s.drv, false).Batches() }
func (s *Store) Progress() ProgressRepo { return s.repos(s.drv, false).Progress() }
func (s *Store) Settings() SettingsRepo { return s.repos(s.drv, false).Settings() }

func (s *Store) repos(ex dialect.ExecQuerier, inTx bool) *sqlRepos {
	return &sqlRepos{store: s, ex: ex, inTx: inTx}
}

// WithTx runs fn inside a single SQLite transaction.
func (s *Store) WithTx(ctx context.Context, fn func(Repos) error) error {
	return s.repos(s.drv, false).atomic(ctx, func(r *sqlRepos) error {
		return fn(r)
	})
}

// sqlRepos binds the repositories to either the pool or an open transaction.
type sqlRepos struct {
	store *Store
	ex    dialect.ExecQuerier
	inTx  bool
}

func (r *sqlRepos) Batches() BatchRepo     { return &batchRepo{r} }
func (r *sqlRepos) Progress() ProgressRepo { return &progressRepo{r} }
func (r *sqlRepos) Settings() SettingsRepo { return &settingsRepo{r} }

// atomic runs fn in the current transaction, or in a new one when r is bound
// to the pool.
func (r *sqlRepos) atomic(ctx context.Context, fn func(*sqlRepos) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.store.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(r.store.repos(tx, true)); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *sqlRepos) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	var res sql.Result
	if err := r.ex.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *sqlRepos) query(ctx context.Context, query string, args []any, scan func(*entsql.Rows) error) error {
	var rows entsql.Rows
	if err := r.ex.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *sqlRepos) timestamp() string {
	return formatTime(r.store.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DefaultDBPath resolves the database file path in priority order:
// 1. ALGEBRIX_DB environment variable
// 2. $XDG_DATA_HOME/algebrix/algebrix.db
// 3. ~/.local/share/algebrix/algebrix.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("ALGEBRIX_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "algebrix", "algebrix.db")
	return p, ensureDir(p)
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
