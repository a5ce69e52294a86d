package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"BourseNews/internal/domain"
	"BourseNews/internal/ports"
)

const (
	itemsTable = "items"

	// DefaultRecentLimit bounds LoadRecent when the caller passes a non-positive limit.
	DefaultRecentLimit = 200

	// Fixed-width UTC timestamps keep lexical and chronological order identical.
	createdAtLayout = "2006-01-02T15:04:05.000000Z07:00"
)

var itemColumns = []string{
	"id", "feed_name", "title", "link", "published", "summary",
	"ai_summary", "sentiment", "score", "created_at",
	"priority", "publication_freshness", "market_bias", "time_horizon", "confidence_level",
	"key_links", "investor_takeaway", "publisher", "markets_impacted",
}

// created_at is deliberately absent: it is written once on insert.
const upsertSuffix = `ON CONFLICT(id) DO UPDATE SET
	feed_name = excluded.feed_name,
	title = excluded.title,
	link = excluded.link,
	published = excluded.published,
	summary = excluded.summary,
	ai_summary = excluded.ai_summary,
	sentiment = excluded.sentiment,
	score = excluded.score,
	priority = excluded.priority,
	publication_freshness = excluded.publication_freshness,
	market_bias = excluded.market_bias,
	time_horizon = excluded.time_horizon,
	confidence_level = excluded.confidence_level,
	key_links = excluded.key_links,
	investor_takeaway = excluded.investor_takeaway,
	publisher = excluded.publisher,
	markets_impacted = excluded.markets_impacted`

// SQLiteRepository persists annotated items into a local SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ItemRepository = (*SQLiteRepository)(nil)

// Open creates the parent directory, applies pending migrations and opens the store file.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	if err := Migrate(abs); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", abs+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Single process, single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return NewSQLiteRepository(db), nil
}

// NewSQLiteRepository wires an already opened and migrated sql.DB.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Exists reports whether an item with the fingerprint is already stored.
func (r *SQLiteRepository) Exists(ctx context.Context, fingerprint string) (bool, error) {
	query, args, err := r.builder.
		Select("1").
		From(itemsTable).
		Where(sq.Eq{"id": fingerprint}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query exists: %w", err)
	}

	return true, nil
}

// Upsert inserts the item or overwrites the stored row with the same fingerprint.
// The original created_at survives an overwrite.
func (r *SQLiteRepository) Upsert(ctx context.Context, item domain.StoredItem) error {
	if item.Fingerprint == "" {
		return errors.New("upsert item: empty fingerprint")
	}
	if !domain.ValidScore(item.Annotation.Score) {
		return fmt.Errorf("upsert item %s: score %d out of range", item.Fingerprint, item.Annotation.Score)
	}

	keyLinks, err := encodeList(item.Annotation.KeyLinks)
	if err != nil {
		return fmt.Errorf("encode key links: %w", err)
	}
	markets, err := encodeList(item.Annotation.MarketsImpacted)
	if err != nil {
		return fmt.Errorf("encode markets: %w", err)
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	a := item.Annotation
	query, args, err := r.builder.
		Insert(itemsTable).
		Columns(itemColumns...).
		Values(
			item.Fingerprint, item.FeedName, item.Title, item.Link, item.Published, item.Summary,
			a.Summary, string(a.Sentiment), a.Score, formatTime(createdAt),
			string(a.Priority), a.Freshness, a.MarketBias, a.TimeHorizon, a.Confidence,
			keyLinks, a.InvestorTakeaway, a.Publisher, markets,
		).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert item %s: %w", item.Fingerprint, err)
	}

	return nil
}

// LoadRecent returns at most limit items, newest first.
func (r *SQLiteRepository) LoadRecent(ctx context.Context, limit int) ([]domain.StoredItem, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query, args, err := r.builder.
		Select(itemColumns...).
		From(itemsTable).
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	items := make([]domain.StoredItem, 0, limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return items, nil
}

// Count returns the number of stored items.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	query, args, err := r.builder.Select("COUNT(*)").From(itemsTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

func scanItem(rows *sql.Rows) (domain.StoredItem, error) {
	var (
		item              domain.StoredItem
		sentiment         string
		priority          string
		createdAt         string
		keyLinks, markets string
	)

	err := rows.Scan(
		&item.Fingerprint, &item.FeedName, &item.Title, &item.Link, &item.Published, &item.Summary,
		&item.Annotation.Summary, &sentiment, &item.Annotation.Score, &createdAt,
		&priority, &item.Annotation.Freshness, &item.Annotation.MarketBias,
		&item.Annotation.TimeHorizon, &item.Annotation.Confidence,
		&keyLinks, &item.Annotation.InvestorTakeaway, &item.Annotation.Publisher, &markets,
	)
	if err != nil {
		return domain.StoredItem{}, fmt.Errorf("scan item: %w", err)
	}

	item.Annotation.Sentiment = domain.Sentiment(sentiment)
	item.Annotation.Priority = domain.Priority(priority)

	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.StoredItem{}, fmt.Errorf("item %s: %w", item.Fingerprint, err)
	}
	if item.Annotation.KeyLinks, err = decodeList(keyLinks); err != nil {
		return domain.StoredItem{}, fmt.Errorf("item %s key links: %w", item.Fingerprint, err)
	}
	if item.Annotation.MarketsImpacted, err = decodeList(markets); err != nil {
		return domain.StoredItem{}, fmt.Errorf("item %s markets: %w", item.Fingerprint, err)
	}

	return item, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeList(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(createdAtLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(createdAtLayout, raw)
	if err != nil {
		// Rows written by other tools may carry plain RFC 3339.
		t, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse created_at %q: %w", raw, err)
		}
	}
	return t.UTC(), nil
}
