package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ca-srg/prodsearch/internal/types"
)

// Surface is the entry point a search arrived through.
type Surface string

const (
	SurfaceHTTP Surface = "http"
	SurfaceMCP  Surface = "mcp"
	SurfaceCLI  Surface = "cli"
)

// Strategies lists every strategy reported by the store, in display order.
var Strategies = []types.Strategy{
	types.StrategyRich,
	types.StrategySimple,
	types.StrategyVector,
	types.StrategyUnavailable,
}

// Total is the cumulative count for one surface and strategy.
type Total struct {
	Surface  Surface        `json:"surface" yaml:"surface"`
	Strategy types.Strategy `json:"strategy" yaml:"strategy"`
	Count    int64          `json:"count" yaml:"count"`
}

// Store manages SQLite persistence for search counts.
type Store struct {
	db *sql.DB
}

// DefaultPath returns ~/.prodsearch/usage.db.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".prodsearch", "usage.db"), nil
}

// NewStore opens the database at dbPath, or at DefaultPath when dbPath is
// empty. The directory and database file are created if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS search_counts (
			surface TEXT NOT NULL,
			strategy TEXT NOT NULL,
			date TEXT NOT NULL,
			count INTEGER DEFAULT 0,
			PRIMARY KEY (surface, strategy, date)
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Increment adds one to today's count for surface and strategy.
func (s *Store) Increment(ctx context.Context, surface Surface, strategy types.Strategy) error {
	today := time.Now().Format("2006-01-02")

	upsertSQL := `
		INSERT INTO search_counts (surface, strategy, date, count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(surface, strategy, date) DO UPDATE SET count = count + 1;
	`
	if _, err := s.db.ExecContext(ctx, upsertSQL, string(surface), string(strategy), today); err != nil {
		return fmt.Errorf("failed to increment count: %w", err)
	}
	return nil
}

// TotalsByStrategy returns cumulative counts per strategy across surfaces and
// dates. Every known strategy is present.
func (s *Store) TotalsByStrategy(ctx context.Context) (map[types.Strategy]int64, error) {
	result := make(map[types.Strategy]int64, len(Strategies))
	for _, strategy := range Strategies {
		result[strategy] = 0
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT strategy, COALESCE(SUM(count), 0) FROM search_counts GROUP BY strategy",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var strategy string
		var total int64
		if err := rows.Scan(&strategy, &total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[types.Strategy(strategy)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// Totals returns cumulative counts per surface and strategy.
func (s *Store) Totals(ctx context.Context) ([]Total, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT surface, strategy, COALESCE(SUM(count), 0) FROM search_counts
		 GROUP BY surface, strategy ORDER BY surface, strategy`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	var totals []Total
	for rows.Next() {
		var t Total
		var surface, strategy string
		if err := rows.Scan(&surface, &strategy, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		t.Surface = Surface(surface)
		t.Strategy = types.Strategy(strategy)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return totals, nil
}

// CountByDate returns the count for one surface, strategy and date (YYYY-MM-DD).
func (s *Store) CountByDate(ctx context.Context, surface Surface, strategy types.Strategy, date string) (int64, error) {
	var count int64
	row := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(count, 0) FROM search_counts WHERE surface = ? AND strategy = ? AND date = ?",
		string(surface), string(strategy), date,
	)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get count: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
