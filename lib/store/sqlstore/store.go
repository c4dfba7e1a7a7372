package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/lib/store/lstore"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var Logger = logger.GetLogger("sqlstore")

// fileExt is appended to the db name to build the database file name
const fileExt = ".sqlite"

// database is one SQLite database, opened lazily on first use
type database struct {
	once sync.Once
	db   *sql.DB
	path string
	err  error
}

// table is one store (table) inside a database, created lazily on first use
type table struct {
	once  sync.Once
	ident string
	err   error

	getTimer metrics.Timer
	putTimer metrics.Timer
}

type storeImpl struct {
	dataDir   string
	databases *xsync.MapOf[string, *database]
	tables    *xsync.MapOf[store.Namespace, *table]
	registry  metrics.Registry

	// mu guards closed against concurrent Close; operations hold it for reading
	mu     sync.RWMutex
	closed atomic.Bool
}

// NewSQLiteStore creates a store that keeps each DBName in its own SQLite database file
// under dataDir and each StoreName in its own table. An empty dataDir keeps all databases
// in memory, which is mostly useful for testing.
func NewSQLiteStore(dataDir string) (store.IStore, error) {
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &storeImpl{
		dataDir:   dataDir,
		databases: xsync.NewMapOf[string, *database](),
		tables:    xsync.NewMapOf[store.Namespace, *table](),
		registry:  metrics.NewRegistry(),
	}, nil
}

// --------------------------------------------------------------------------
// Database and table management
// --------------------------------------------------------------------------

// quoteIdent quotes name for use as an SQL identifier
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *storeImpl) openDB(name string) (*database, error) {
	d, _ := s.databases.LoadOrCompute(name, func() *database {
		return &database{}
	})

	d.once.Do(func() {
		path := ":memory:"
		if s.dataDir != "" {
			path = filepath.Join(s.dataDir, name+fileExt)
		}
		d.path = path

		conn, err := sql.Open("sqlite", path)
		if err != nil {
			d.err = fmt.Errorf("open database: %w", err)
			return
		}
		// one connection: SQLite has a single writer and every :memory: connection is its own database
		conn.SetMaxOpenConns(1)

		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			d.err = fmt.Errorf("enable WAL mode: %w", err)
			return
		}
		d.db = conn
		Logger.Debugf("opened database %s at %s", name, path)
	})

	return d, d.err
}

// open returns the database and table for ns, creating both on first use.
func (s *storeImpl) open(ctx context.Context, ns store.Namespace) (*sql.DB, *table, error) {
	if s.closed.Load() {
		return nil, nil, store.NewError(store.RetCClosed, "store is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, store.NewError(store.RetCInternalError, err.Error())
	}
	if err := ns.Validate(); err != nil {
		return nil, nil, err
	}

	d, err := s.openDB(ns.DBName)
	if err != nil {
		return nil, nil, store.NewError(store.RetCInternalError, err.Error())
	}

	t, _ := s.tables.LoadOrCompute(ns, func() *table {
		return &table{
			ident:    quoteIdent("kv_" + ns.StoreName),
			getTimer: metrics.GetOrRegisterTimer("get."+ns.String(), s.registry),
			putTimer: metrics.GetOrRegisterTimer("put."+ns.String(), s.registry),
		}
	})
	t.once.Do(func() {
		_, t.err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS `+t.ident+` (
				key TEXT NOT NULL PRIMARY KEY,
				value BLOB NOT NULL,
				updated_at TEXT NOT NULL
			)
		`)
		if t.err != nil {
			t.err = fmt.Errorf("create table for %s: %w", ns, t.err)
		}
	})
	if t.err != nil {
		return nil, nil, store.NewError(store.RetCInternalError, t.err.Error())
	}

	return d.db, t, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(ctx context.Context, ns store.Namespace, key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, t, err := s.open(ctx, ns)
	if err != nil {
		return err
	}

	start := time.Now()
	defer t.putTimer.UpdateSince(start)

	if value == nil {
		value = []byte{}
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO `+t.ident+` (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("put %s: %v", ns, err))
	}
	return nil
}

func (s *storeImpl) Delete(ctx context.Context, ns store.Namespace, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, t, err := s.open(ctx, ns)
	if err != nil {
		return err
	}

	start := time.Now()
	defer t.putTimer.UpdateSince(start)

	if _, err := conn.ExecContext(ctx, `DELETE FROM `+t.ident+` WHERE key = ?`, key); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("delete %s: %v", ns, err))
	}
	return nil
}

func (s *storeImpl) Get(ctx context.Context, ns store.Namespace, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, t, err := s.open(ctx, ns)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	defer t.getTimer.UpdateSince(start)

	var value []byte
	err = conn.QueryRowContext(ctx, `SELECT value FROM `+t.ident+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.NewError(store.RetCInternalError, fmt.Sprintf("get %s: %v", ns, err))
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (s *storeImpl) Has(ctx context.Context, ns store.Namespace, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, t, err := s.open(ctx, ns)
	if err != nil {
		return false, err
	}

	var exists bool
	err = conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+t.ident+` WHERE key = ?)`, key).Scan(&exists)
	if err != nil {
		return false, store.NewError(store.RetCInternalError, fmt.Sprintf("has %s: %v", ns, err))
	}
	return exists, nil
}

func (s *storeImpl) GetDBInfo(ns store.Namespace) (db.DatabaseInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	conn, t, err := s.open(ctx, ns)
	if err != nil {
		return db.DatabaseInfo{}, err
	}

	var entries, size int
	err = conn.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM `+t.ident).Scan(&entries, &size)
	if err != nil {
		return db.DatabaseInfo{}, store.NewError(store.RetCInternalError, fmt.Sprintf("info %s: %v", ns, err))
	}

	d, _ := s.databases.Load(ns.DBName)

	return db.DatabaseInfo{
		SizeBytes: size,
		Entries:   entries,
		DbType:    db.ImplSQLite,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
		},
		Metadata: &struct {
			Namespace  store.Namespace   `json:"namespace"`
			Path       string            `json:"path"`
			Table      string            `json:"table"`
			GetLatency lstore.TimerStats `json:"get_latency"`
			PutLatency lstore.TimerStats `json:"put_latency"`
		}{
			Namespace:  ns,
			Path:       d.path,
			Table:      t.ident,
			GetLatency: lstore.NewTimerStats(t.getTimer),
			PutLatency: lstore.NewTimerStats(t.putTimer),
		},
	}, nil
}

func (s *storeImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}

	var errs []error
	s.databases.Range(func(name string, d *database) bool {
		if d.db != nil {
			if err := d.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
		return true
	})
	s.registry.UnregisterAll()

	if err := errors.Join(errs...); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}
