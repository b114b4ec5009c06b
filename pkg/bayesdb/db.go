// pkg/bayesdb/db.go
package bayesdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MemoryPath is the path sentinel for an ephemeral in-memory database.
const MemoryPath = ":memory:"

var (
	// ErrDatabaseClosed is returned when attempting operations on a closed database
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrDatabaseLocked is returned when the database file is already locked
	ErrDatabaseLocked = errors.New("database is locked by another connection")

	// ErrMetamodelExists is returned when a metamodel name is registered twice
	ErrMetamodelExists = errors.New("metamodel already registered")

	// ErrNoSuchMetamodel is returned when looking up an unregistered metamodel
	ErrNoSuchMetamodel = errors.New("no such metamodel")

	// ErrNoSuchTable is returned when a named table does not exist
	ErrNoSuchTable = errors.New("no such table")
)

// Metamodel is a statistical modeling backend that can be registered
// with a database handle.
type Metamodel interface {
	// Name identifies the metamodel in the registry and in generator rows.
	Name() string

	// Register creates whatever tables the metamodel keeps in the database.
	// It is called once by RegisterMetamodel and must be idempotent
	// across processes opening the same file.
	Register(ctx context.Context, db *DB) error
}

// DB is an open bayesdb handle: a SQLite database plus the registry of
// metamodels available to it.
type DB struct {
	mu sync.RWMutex

	// path is the file path of the database, or MemoryPath
	path string

	// sql is the underlying SQLite connection pool
	sql *sql.DB

	// lockFile holds the lock file to prevent concurrent access
	lockFile *os.File

	// metamodels maps registered metamodel names to their implementation
	metamodels map[string]Metamodel

	logger *zap.Logger

	// closed indicates if the database has been closed
	closed bool
}

// Options configures database opening behavior
type Options struct {
	// Logger receives debug output about the handle. Nil disables logging.
	Logger *zap.Logger
}

// Open opens a database file and returns a new DB handle.
// If the file does not exist, it will be created. MemoryPath opens a
// private in-memory database.
// The caller is responsible for calling Close when done.
func Open(path string) (*DB, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions opens a database file with the specified options.
func OpenWithOptions(path string, opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lf *os.File
	if path != MemoryPath {
		var err error
		lf, err = os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, fmt.Errorf("open lock file: %w", err)
		}
		if err := lockFile(lf); err != nil {
			lf.Close()
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, releaseLock(lf, err)
	}
	// Every connection to ":memory:" is a distinct database, so the pool
	// is pinned to one connection. File databases get the same treatment
	// since the lock file already rules out concurrent writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, releaseLock(lf, fmt.Errorf("open %s: %w", path, err))
	}

	db := &DB{
		path:       path,
		sql:        conn,
		lockFile:   lf,
		metamodels: make(map[string]Metamodel),
		logger:     logger.Named("bayesdb"),
	}

	if err := db.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	db.logger.Debug("opened database", zap.String("path", path))
	return db, nil
}

func releaseLock(lf *os.File, err error) error {
	if lf == nil {
		return err
	}
	return multierr.Combine(err, unlockFile(lf), lf.Close())
}

// Close closes the database and releases the lock file.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}
	db.closed = true

	err := db.sql.Close()
	if db.lockFile != nil {
		err = multierr.Combine(err, unlockFile(db.lockFile), db.lockFile.Close())
		db.lockFile = nil
	}
	db.logger.Debug("closed database", zap.String("path", db.path), zap.Error(err))
	return err
}

// Path returns the path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// IsMemory reports whether the database is an ephemeral in-memory instance.
func (db *DB) IsMemory() bool {
	return db.path == MemoryPath
}

// RegisterMetamodel registers m as a modeling backend for this database.
func (db *DB) RegisterMetamodel(ctx context.Context, m Metamodel) error {
	if err := db.checkOpen(); err != nil {
		return err
	}

	name := m.Name()
	db.mu.RLock()
	_, exists := db.metamodels[name]
	db.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrMetamodelExists, name)
	}

	if err := m.Register(ctx, db); err != nil {
		return fmt.Errorf("register metamodel %s: %w", name, err)
	}

	db.mu.Lock()
	db.metamodels[name] = m
	db.mu.Unlock()

	db.logger.Debug("registered metamodel", zap.String("name", name))
	return nil
}

// Metamodel returns the registered metamodel with the given name.
func (db *DB) Metamodel(name string) (Metamodel, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.metamodels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchMetamodel, name)
	}
	return m, nil
}

// Metamodels returns the names of all registered metamodels, sorted.
func (db *DB) Metamodels() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.metamodels))
	for name := range db.metamodels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (db *DB) checkOpen() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrDatabaseClosed
	}
	return nil
}
