package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a
// fallback. The tsvector is computed per query; retro boards are small
// enough that an index column is not worth the schema weight.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across cards and agreements using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.SeriesID == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.SeriesID}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultCard {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'card'::text AS type, c.id,
				ts_headline('english', c.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.board_id, b.name AS board_name, b.series_id, u.display_name AS author_name,
				ts_rank(to_tsvector('english', c.content), %s) AS rank
			FROM cards c
			JOIN boards b ON b.id = c.board_id
			JOIN users u ON u.id = c.user_id
			WHERE b.series_id = $2 AND to_tsvector('english', c.content) @@ %s`,
			tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultAgreement {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'agreement'::text AS type, a.id,
				ts_headline('english', a.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				a.board_id, b.name AS board_name, b.series_id, u.display_name AS author_name,
				ts_rank(to_tsvector('english', a.content), %s) AS rank
			FROM agreements a
			JOIN boards b ON b.id = a.board_id
			JOIN users u ON u.id = a.user_id
			WHERE b.series_id = $2 AND to_tsvector('english', a.content) @@ %s`,
			tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, snippet, board_id, board_name, series_id, author_name
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Snippet, &r.BoardID, &r.BoardName, &r.SeriesID, &r.AuthorName); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadSeriesRecords returns all searchable records for a series, for
// reindexing into Meilisearch.
func (p *PgFTS) LoadSeriesRecords(ctx context.Context, seriesID string) ([]CardRecord, []AgreementRecord, error) {
	cardRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.content, c.board_id, b.name, b.series_id, u.display_name
		FROM cards c
		JOIN boards b ON b.id = c.board_id
		JOIN users u ON u.id = c.user_id
		WHERE b.series_id = $1
	`, seriesID)
	if err != nil {
		return nil, nil, fmt.Errorf("load cards: %w", err)
	}
	defer cardRows.Close()

	cards := make([]CardRecord, 0)
	for cardRows.Next() {
		var c CardRecord
		if err := cardRows.Scan(&c.ID, &c.Content, &c.BoardID, &c.BoardName, &c.SeriesID, &c.AuthorName); err != nil {
			return nil, nil, fmt.Errorf("scan card record: %w", err)
		}
		cards = append(cards, c)
	}
	if err := cardRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate card records: %w", err)
	}

	agreementRows, err := p.db.QueryContext(ctx, `
		SELECT a.id, a.content, a.board_id, b.name, b.series_id, u.display_name
		FROM agreements a
		JOIN boards b ON b.id = a.board_id
		JOIN users u ON u.id = a.user_id
		WHERE b.series_id = $1
	`, seriesID)
	if err != nil {
		return nil, nil, fmt.Errorf("load agreements: %w", err)
	}
	defer agreementRows.Close()

	agreements := make([]AgreementRecord, 0)
	for agreementRows.Next() {
		var a AgreementRecord
		if err := agreementRows.Scan(&a.ID, &a.Content, &a.BoardID, &a.BoardName, &a.SeriesID, &a.AuthorName); err != nil {
			return nil, nil, fmt.Errorf("scan agreement record: %w", err)
		}
		agreements = append(agreements, a)
	}
	if err := agreementRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate agreement records: %w", err)
	}

	return cards, agreements, nil
}
