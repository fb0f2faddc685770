package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Entry describes one cached transcript without its segments.
type Entry struct {
	Fingerprint  string
	Engine       string
	ResponseID   string
	SourceName   string
	SegmentCount int
	CreatedAt    time.Time
}

// Stats summarizes the cache contents.
type Stats struct {
	Path          string
	Entries       int
	Segments      int
	PerEngine     map[string]int
	Oldest        time.Time
	Newest        time.Time
	DatabaseBytes int64
}

// List returns entries newest first. An empty engine matches all engines; a
// non-positive limit returns everything.
func (s *Store) List(ctx context.Context, engine string, limit int) ([]Entry, error) {
	query := `SELECT fingerprint, engine, response_id, source_name, segment_count, created_at
		FROM transcripts`
	args := []any{}
	if engine != "" {
		query += ` WHERE engine = ?`
		args = append(args, engine)
	}
	query += ` ORDER BY created_at DESC, fingerprint`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			created int64
		)
		if err := rows.Scan(&entry.Fingerprint, &entry.Engine, &entry.ResponseID, &entry.SourceName, &entry.SegmentCount, &created); err != nil {
			return nil, fmt.Errorf("cache list scan: %w", err)
		}
		entry.CreatedAt = time.Unix(created, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats aggregates entry counts per engine and the database size on disk.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: s.path, PerEngine: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT engine, COUNT(1), COALESCE(SUM(segment_count), 0), MIN(created_at), MAX(created_at)
		 FROM transcripts GROUP BY engine`)
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	var oldest, newest int64
	for rows.Next() {
		var (
			engine           string
			count, segments  int
			minTime, maxTime int64
		)
		if err := rows.Scan(&engine, &count, &segments, &minTime, &maxTime); err != nil {
			return stats, fmt.Errorf("cache stats scan: %w", err)
		}
		stats.PerEngine[engine] = count
		stats.Entries += count
		stats.Segments += segments
		if oldest == 0 || minTime < oldest {
			oldest = minTime
		}
		if maxTime > newest {
			newest = maxTime
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}
	if stats.Entries > 0 {
		stats.Oldest = time.Unix(oldest, 0)
		stats.Newest = time.Unix(newest, 0)
	}

	for _, suffix := range []string{"", "-wal"} {
		info, err := os.Stat(s.path + suffix)
		if err == nil {
			stats.DatabaseBytes += info.Size()
		} else if !errors.Is(err, os.ErrNotExist) {
			return stats, fmt.Errorf("stat cache database: %w", err)
		}
	}
	return stats, nil
}

// Remove deletes entries whose fingerprint starts with prefix. An empty engine
// matches all engines.
func (s *Store) Remove(ctx context.Context, prefix, engine string) (int64, error) {
	if prefix == "" {
		return 0, errors.New("cache remove: fingerprint prefix required")
	}
	query := `DELETE FROM transcripts WHERE fingerprint LIKE ? ESCAPE '\'`
	args := []any{escapeLike(prefix) + "%"}
	if engine != "" {
		query += ` AND engine = ?`
		args = append(args, engine)
	}
	removed, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cache remove: %w", err)
	}
	s.memory.Flush()
	return removed, nil
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	removed, err := s.exec(ctx, `DELETE FROM transcripts`)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	s.memory.Flush()
	return removed, nil
}

// Prune deletes entries created more than olderThan ago.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("cache prune: age must be positive, got %s", olderThan)
	}
	cutoff := s.now().Add(-olderThan).Unix()
	removed, err := s.exec(ctx, `DELETE FROM transcripts WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	s.memory.Flush()
	return removed, nil
}

func escapeLike(value string) string {
	out := make([]rune, 0, len(value))
	for _, r := range value {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

// Reset removes the database and its sidecar files. The store at path must be
// closed first.
func Reset(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm", fileLockSuffix} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path+suffix, err)
		}
	}
	return nil
}
