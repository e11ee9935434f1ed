// Package analytics keeps a best-effort sqlite log of advisory queries for
// offline review. Logging failures never fail a request.
package analytics

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

const previewLimit = 200

const schema = `
CREATE TABLE IF NOT EXISTS queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	user_session_id TEXT NOT NULL,
	is_return_user INTEGER NOT NULL DEFAULT 0,
	days_since_last_visit REAL NOT NULL DEFAULT 0,
	visit_count INTEGER NOT NULL DEFAULT 1,
	detected_category TEXT NOT NULL,
	team_size TEXT NOT NULL DEFAULT '',
	budget_mentioned INTEGER NOT NULL DEFAULT 0,
	rate_limit_hit INTEGER NOT NULL DEFAULT 0,
	query_length INTEGER NOT NULL,
	user_query TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queries_session ON queries(user_session_id);
`

// Event is one logged advisory query.
type Event struct {
	Timestamp          time.Time
	SessionID          string
	ReturnUser         bool
	DaysSinceLastVisit float64
	VisitCount         int
	DetectedCategory   string
	TeamSize           string
	BudgetMentioned    bool
	RateLimitHit       bool
	QueryLength        int
	QueryPreview       string
}

// Store wraps the sqlite analytics database.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens or creates the analytics database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create analytics dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	// modernc sqlite serializes access through a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init analytics schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: log.New(log.Writer(), "[ANALYTICS] ", log.LstdFlags),
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// LogQuery inserts one event. Errors are logged and swallowed so analytics
// can never fail a live request.
func (s *Store) LogQuery(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.VisitCount <= 0 {
		ev.VisitCount = 1
	}
	if ev.DetectedCategory == "" {
		ev.DetectedCategory = CategoryUnspecified
	}
	preview := truncateRunes(ev.QueryPreview, previewLimit)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queries
			(timestamp, user_session_id, is_return_user, days_since_last_visit,
			 visit_count, detected_category, team_size, budget_mentioned,
			 rate_limit_hit, query_length, user_query)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp.UTC().Format(time.RFC3339),
		ev.SessionID,
		boolInt(ev.ReturnUser),
		ev.DaysSinceLastVisit,
		ev.VisitCount,
		ev.DetectedCategory,
		ev.TeamSize,
		boolInt(ev.BudgetMentioned),
		boolInt(ev.RateLimitHit),
		ev.QueryLength,
		preview,
	)
	if err != nil {
		s.logger.Printf("log query failed: %v", err)
	}
}

// truncateRunes caps s at limit bytes without splitting a multi-byte rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CategoryCount is one row of the category distribution.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Summary aggregates the query log.
type Summary struct {
	TotalQueries    int             `json:"total_queries"`
	UniqueSessions  int             `json:"unique_sessions"`
	ReturnUsers     int             `json:"return_users"`
	Categories      []CategoryCount `json:"categories"`
	BudgetMentioned int             `json:"budget_mentioned"`
	RateLimitHits   int             `json:"rate_limit_hits"`
	AvgQueryLength  float64         `json:"avg_query_length"`
	MaxQueryLength  int             `json:"max_query_length"`
}

// Summary computes the aggregate view of the log.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT user_session_id),
		       COUNT(DISTINCT CASE WHEN is_return_user = 1 THEN user_session_id END),
		       COALESCE(SUM(budget_mentioned), 0),
		       COALESCE(SUM(rate_limit_hit), 0),
		       COALESCE(AVG(query_length), 0),
		       COALESCE(MAX(query_length), 0)
		FROM queries`)
	if err := row.Scan(&sum.TotalQueries, &sum.UniqueSessions, &sum.ReturnUsers,
		&sum.BudgetMentioned, &sum.RateLimitHits, &sum.AvgQueryLength, &sum.MaxQueryLength); err != nil {
		return Summary{}, fmt.Errorf("summarize queries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT detected_category, COUNT(*) AS count
		FROM queries
		GROUP BY detected_category
		ORDER BY count DESC`)
	if err != nil {
		return Summary{}, fmt.Errorf("category distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return Summary{}, err
		}
		sum.Categories = append(sum.Categories, cc)
	}
	return sum, rows.Err()
}

// ExportCSV writes the full query log, newest first.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, user_session_id, is_return_user, days_since_last_visit,
		       visit_count, detected_category, team_size, budget_mentioned,
		       rate_limit_hit, query_length, user_query
		FROM queries
		ORDER BY timestamp DESC`)
	if err != nil {
		return fmt.Errorf("export queries: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	header := []string{"timestamp", "session_id", "is_return_user", "days_since_last_visit",
		"visit_count", "detected_category", "team_size", "budget_mentioned",
		"rate_limit_hit", "query_length", "user_query"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for rows.Next() {
		var (
			ts, session, category, teamSize, query string
			returnUser, budget, rateLimited        int
			visitCount, queryLength                int
			daysSince                              float64
		)
		if err := rows.Scan(&ts, &session, &returnUser, &daysSince, &visitCount,
			&category, &teamSize, &budget, &rateLimited, &queryLength, &query); err != nil {
			return err
		}
		rec := []string{
			ts, session,
			strconv.Itoa(returnUser),
			strconv.FormatFloat(daysSince, 'f', -1, 64),
			strconv.Itoa(visitCount),
			category, teamSize,
			strconv.Itoa(budget),
			strconv.Itoa(rateLimited),
			strconv.Itoa(queryLength),
			query,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
