package lstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("store")

// snapshotExt is appended to the store name to build the snapshot file name
const snapshotExt = ".maple"

// namespaceDB is the engine backing a single namespace
type namespaceDB struct {
	ns    store.Namespace
	db    db.KVDB
	index atomic.Uint64

	// path of the snapshot file, empty for in-memory stores
	path   string
	saveMu sync.Mutex

	// set if the snapshot file exists but could not be loaded
	loadErr error

	getTimer metrics.Timer
	putTimer metrics.Timer
}

type storeImpl struct {
	factory    store.DBFactory
	dataDir    string
	namespaces *xsync.MapOf[store.Namespace, *namespaceDB]
	registry   metrics.Registry
	closed     atomic.Bool
}

// NewLocalStore creates a new local store instance.
// Every namespace gets its own db created by factory. If dataDir is empty the store is
// purely in-memory; otherwise each namespace is snapshotted to <dataDir>/<db>/<store>.maple
// after every write and restored from there when the namespace is first used.
func NewLocalStore(factory store.DBFactory, dataDir string) store.IStore {
	return &storeImpl{
		factory:    factory,
		dataDir:    dataDir,
		namespaces: xsync.NewMapOf[store.Namespace, *namespaceDB](),
		registry:   metrics.NewRegistry(),
	}
}

// --------------------------------------------------------------------------
// Namespace management
// --------------------------------------------------------------------------

// open returns the engine for ns, creating (and restoring) it on first use.
func (s *storeImpl) open(ctx context.Context, ns store.Namespace) (*namespaceDB, error) {
	if s.closed.Load() {
		return nil, store.NewError(store.RetCClosed, "store is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, store.NewError(store.RetCInternalError, err.Error())
	}
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	nsdb, _ := s.namespaces.LoadOrCompute(ns, func() *namespaceDB {
		return s.newNamespaceDB(ns)
	})
	if nsdb.loadErr != nil {
		return nil, store.NewError(store.RetCInternalError, nsdb.loadErr.Error())
	}
	return nsdb, nil
}

func (s *storeImpl) newNamespaceDB(ns store.Namespace) *namespaceDB {
	nsdb := &namespaceDB{
		ns:       ns,
		db:       s.factory(),
		getTimer: metrics.GetOrRegisterTimer("get."+ns.String(), s.registry),
		putTimer: metrics.GetOrRegisterTimer("put."+ns.String(), s.registry),
	}
	if s.dataDir == "" {
		return nsdb
	}

	nsdb.path = filepath.Join(s.dataDir, ns.DBName, ns.StoreName+snapshotExt)
	f, err := os.Open(nsdb.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		Logger.Debugf("no snapshot for %s, starting empty", ns)
	case err != nil:
		nsdb.loadErr = fmt.Errorf("open snapshot %s: %w", nsdb.path, err)
	default:
		defer f.Close()
		if err := nsdb.db.Load(f); err != nil {
			nsdb.loadErr = fmt.Errorf("load snapshot %s: %w", nsdb.path, err)
		} else {
			nsdb.index.Store(nsdb.db.WriteIdx())
			Logger.Debugf("restored %s from %s", ns, nsdb.path)
		}
	}
	if nsdb.loadErr != nil {
		Logger.Errorf("namespace %s unusable: %v", ns, nsdb.loadErr)
	}
	return nsdb
}

// persist writes a snapshot of nsdb to its file. The file is replaced atomically, so a
// crash leaves either the old or the new snapshot on disk.
func (nsdb *namespaceDB) persist() error {
	if nsdb.path == "" {
		return nil
	}

	nsdb.saveMu.Lock()
	defer nsdb.saveMu.Unlock()

	dir := filepath.Dir(nsdb.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(nsdb.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := nsdb.db.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), nsdb.path)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(ctx context.Context, ns store.Namespace, key string, value []byte) error {
	nsdb, err := s.open(ctx, ns)
	if err != nil {
		return err
	}
	if !nsdb.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Put operation is not supported")
	}

	start := time.Now()
	defer nsdb.putTimer.UpdateSince(start)

	nsdb.db.Set(key, value, nsdb.index.Add(1))
	if err := nsdb.persist(); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("persist %s: %v", ns, err))
	}
	return nil
}

func (s *storeImpl) Delete(ctx context.Context, ns store.Namespace, key string) error {
	nsdb, err := s.open(ctx, ns)
	if err != nil {
		return err
	}
	if !nsdb.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}

	start := time.Now()
	defer nsdb.putTimer.UpdateSince(start)

	nsdb.db.Delete(key, nsdb.index.Add(1))
	if err := nsdb.persist(); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("persist %s: %v", ns, err))
	}
	return nil
}

func (s *storeImpl) Get(ctx context.Context, ns store.Namespace, key string) ([]byte, bool, error) {
	nsdb, err := s.open(ctx, ns)
	if err != nil {
		return nil, false, err
	}
	if !nsdb.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}

	start := time.Now()
	defer nsdb.getTimer.UpdateSince(start)

	val, ok := nsdb.db.Get(key)
	return val, ok, nil
}

func (s *storeImpl) Has(ctx context.Context, ns store.Namespace, key string) (bool, error) {
	nsdb, err := s.open(ctx, ns)
	if err != nil {
		return false, err
	}
	if !nsdb.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
	}
	return nsdb.db.Has(key), nil
}

func (s *storeImpl) GetDBInfo(ns store.Namespace) (db.DatabaseInfo, error) {
	nsdb, err := s.open(context.Background(), ns)
	if err != nil {
		return db.DatabaseInfo{}, err
	}

	info := nsdb.db.GetInfo()
	info.Metadata = &struct {
		Namespace    store.Namespace `json:"namespace"`
		SnapshotPath string          `json:"snapshot_path,omitempty"`
		GetLatency   TimerStats      `json:"get_latency"`
		PutLatency   TimerStats      `json:"put_latency"`
		Engine       interface{}     `json:"engine"`
	}{
		Namespace:    ns,
		SnapshotPath: nsdb.path,
		GetLatency:   NewTimerStats(nsdb.getTimer),
		PutLatency:   NewTimerStats(nsdb.putTimer),
		Engine:       info.Metadata,
	}
	return info, nil
}

func (s *storeImpl) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	var errs []error
	s.namespaces.Range(func(ns store.Namespace, nsdb *namespaceDB) bool {
		if err := nsdb.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", ns, err))
		}
		s.namespaces.Delete(ns)
		return true
	})
	s.registry.UnregisterAll()

	if err := errors.Join(errs...); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}
