package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
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

// Search executes a UNION ALL query across buyers and projects using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
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

	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultBuyer {
		buyerWhere := "b.search_tsv @@ " + tsQuery
		if q.FilterCountry != "" {
			buyerWhere += fmt.Sprintf(" AND b.country = $%d", argN)
			args = append(args, q.FilterCountry)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'buyer'::text AS type, b.id, b.company AS title,
				ts_headline('simple', coalesce(b.memo, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				b.id AS buyer_id, b.country, ''::text AS stage,
				ts_rank(b.search_tsv, %s) AS rank
			FROM buyers b
			WHERE %s`, tsQuery, tsQuery, buyerWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultProject {
		projectWhere := "pr.search_tsv @@ " + tsQuery
		if q.FilterStage != "" {
			projectWhere += fmt.Sprintf(" AND pr.stage = $%d", argN)
			args = append(args, q.FilterStage)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'project'::text AS type, pr.id, pr.name AS title,
				ts_headline('simple', coalesce(b.company, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				pr.buyer_id, b.country, pr.stage,
				ts_rank(pr.search_tsv, %s) AS rank
			FROM projects pr
			JOIN buyers b ON b.id = pr.buyer_id
			WHERE %s`, tsQuery, tsQuery, projectWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, buyer_id, country, stage
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
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.BuyerID, &r.Country, &r.Stage); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]BuyerRecord, []ProjectRecord, error) {
	buyerRows, err := p.db.QueryContext(ctx, `
		SELECT id, company, country, contact_name, channel, coalesce(memo, '')
		FROM buyers
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load buyers: %w", err)
	}
	defer buyerRows.Close()

	buyers := make([]BuyerRecord, 0)
	for buyerRows.Next() {
		var b BuyerRecord
		if err := buyerRows.Scan(&b.ID, &b.Company, &b.Country, &b.ContactName, &b.Channel, &b.Memo); err != nil {
			return nil, nil, fmt.Errorf("scan buyer: %w", err)
		}
		buyers = append(buyers, b)
	}
	if err := buyerRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate buyers: %w", err)
	}

	projectRows, err := p.db.QueryContext(ctx, `
		SELECT pr.id, pr.name, pr.buyer_id, b.company, pr.stage
		FROM projects pr
		JOIN buyers b ON b.id = pr.buyer_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer projectRows.Close()

	projects := make([]ProjectRecord, 0)
	for projectRows.Next() {
		var pr ProjectRecord
		if err := projectRows.Scan(&pr.ID, &pr.Name, &pr.BuyerID, &pr.Company, &pr.Stage); err != nil {
			return nil, nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, pr)
	}
	if err := projectRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate projects: %w", err)
	}

	return buyers, projects, nil
}
