package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	gocache "github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite"

	"asrbatch/internal/config"
	"asrbatch/internal/logging"
	"asrbatch/internal/transcript"
)

const (
	defaultMemoryTTL   = time.Hour
	fileLockRetry      = 25 * time.Millisecond
	fileLockSuffix     = ".lock"
	memoryKeySeparator = "\x00"
)

// Options tune a Store.
type Options struct {
	// MemoryTTL bounds how long lookups stay in the in-process tier. Zero uses one hour.
	MemoryTTL time.Duration
	Logger    *slog.Logger
}

// Store is the persistent result cache.
type Store struct {
	db       *sql.DB
	path     string
	lockPath string
	memory   *gocache.Cache
	keys     *keyLocks
	logger   *slog.Logger
	now      func() time.Time
}

// Open connects to (and if needed creates) the cache database at path.
func Open(path string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ttl := opts.MemoryTTL
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	store := &Store{
		db:       db,
		path:     path,
		lockPath: path + fileLockSuffix,
		memory:   gocache.New(ttl, 2*ttl),
		keys:     newKeyLocks(),
		logger:   logging.NewComponentLogger(opts.Logger, "cache"),
		now:      time.Now,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OpenFromConfig opens the store at the configured location. It returns a nil
// store when caching is disabled.
func OpenFromConfig(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil || !cfg.Cache.Enabled {
		return nil, nil
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return Open(cfg.CacheDBPath(), Options{MemoryTTL: cfg.MemoryTTL(), Logger: logger})
}

// Path returns the database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func memoryKey(fingerprint, engine string) string {
	return fingerprint + memoryKeySeparator + engine
}

// Lookup returns the stored result for (fingerprint, engine). Read failures and
// corrupt rows are logged and reported as a miss.
func (s *Store) Lookup(ctx context.Context, fingerprint, engine string) (transcript.Result, bool) {
	if s == nil {
		return transcript.Result{}, false
	}
	key := memoryKey(fingerprint, engine)
	if cached, ok := s.memory.Get(key); ok {
		if result, ok := cached.(transcript.Result); ok {
			return result, true
		}
	}

	var payload string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT result_json FROM transcripts WHERE fingerprint = ? AND engine = ?`,
			fingerprint, engine,
		).Scan(&payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return transcript.Result{}, false
	}
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "cache lookup failed; treating as miss", "cache_read_failed",
			logging.String("fingerprint", shortFingerprint(fingerprint)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file will be sent to the engine"),
		)
		return transcript.Result{}, false
	}

	result, decodeErr := decodeResult(payload)
	if decodeErr != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "cache entry corrupt; discarding", "cache_corrupt",
			logging.String("fingerprint", shortFingerprint(fingerprint)),
			logging.Error(decodeErr),
			logging.String(logging.FieldErrorHint, "entry will be replaced after the next successful transcription"),
			logging.String(logging.FieldImpact, "file will be sent to the engine"),
		)
		s.discardCorrupt(ctx, fingerprint, engine, payload)
		return transcript.Result{}, false
	}

	s.memory.SetDefault(key, result)
	return result, true
}

// Save persists result for (fingerprint, engine). The first write for a key
// wins; it reports whether this call inserted the row.
func (s *Store) Save(ctx context.Context, fingerprint, engine string, result transcript.Result, sourceName string) (bool, error) {
	if s == nil {
		return false, nil
	}
	if err := result.Validate(); err != nil {
		return false, fmt.Errorf("cache save: %w", err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("cache save: encode result: %w", err)
	}

	key := memoryKey(fingerprint, engine)
	unlock := s.keys.lock(key)
	defer unlock()

	fileLock := flock.New(s.lockPath)
	locked, err := fileLock.TryLockContext(ctx, fileLockRetry)
	if err != nil {
		return false, fmt.Errorf("cache save: acquire file lock: %w", err)
	}
	if !locked {
		return false, fmt.Errorf("cache save: file lock %s not acquired", s.lockPath)
	}
	defer func() { _ = fileLock.Unlock() }()

	affected, err := s.exec(ctx,
		`INSERT INTO transcripts (fingerprint, engine, response_id, result_json, segment_count, created_at, source_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (fingerprint, engine) DO NOTHING`,
		fingerprint, engine, result.ResponseID, string(payload), len(result.Segments), s.now().Unix(), sourceName,
	)
	if err != nil {
		return false, fmt.Errorf("cache save: %w", err)
	}
	inserted := affected > 0
	if inserted {
		s.memory.SetDefault(key, result)
	} else {
		s.memory.Delete(key)
	}
	return inserted, nil
}

// discardCorrupt deletes the row only if it still holds the payload that failed
// to decode, so a concurrent valid write is never removed.
func (s *Store) discardCorrupt(ctx context.Context, fingerprint, engine, payload string) {
	unlock := s.keys.lock(memoryKey(fingerprint, engine))
	defer unlock()
	if _, err := s.exec(ctx,
		`DELETE FROM transcripts WHERE fingerprint = ? AND engine = ? AND result_json = ?`,
		fingerprint, engine, payload,
	); err != nil {
		s.logger.Debug("discard corrupt cache entry failed", logging.Error(err))
	}
}

func decodeResult(payload string) (transcript.Result, error) {
	var result transcript.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return transcript.Result{}, fmt.Errorf("decode cached result: %w", err)
	}
	if err := result.Validate(); err != nil {
		return transcript.Result{}, err
	}
	return result, nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
