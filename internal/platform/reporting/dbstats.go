package reporting

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/careorbit/clinic/internal/platform/db"
)

type TableStats struct {
	Rows        int64    `json:"rows"`
	SizeBytes   int64    `json:"size_bytes"`
	AvgRowBytes int64    `json:"avg_row_bytes"`
	Indexes     []string `json:"indexes"`
}

type DBStats struct {
	Tables    map[string]*TableStats `json:"tables"`
	TotalSize int64                  `json:"total_size_bytes"`
}

// CollectDBStats reports row counts, on-disk size and index names for each
// table. Table names must come from a fixed list, never from user input.
func CollectDBStats(ctx context.Context, q db.Querier, tables []string) (*DBStats, error) {
	out := &DBStats{Tables: make(map[string]*TableStats, len(tables))}
	for _, name := range tables {
		ts := &TableStats{}
		if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM `+pgx.Identifier{name}.Sanitize()).Scan(&ts.Rows); err != nil {
			return nil, db.MapError(fmt.Errorf("count %s: %w", name, err))
		}
		if err := q.QueryRow(ctx, `SELECT pg_total_relation_size($1::regclass)`, name).Scan(&ts.SizeBytes); err != nil {
			return nil, db.MapError(fmt.Errorf("size of %s: %w", name, err))
		}
		if ts.Rows > 0 {
			ts.AvgRowBytes = ts.SizeBytes / ts.Rows
		}

		rows, err := q.Query(ctx, `SELECT indexname FROM pg_indexes WHERE tablename = $1 ORDER BY indexname`, name)
		if err != nil {
			return nil, db.MapError(fmt.Errorf("indexes of %s: %w", name, err))
		}
		ts.Indexes, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, db.MapError(fmt.Errorf("indexes of %s: %w", name, err))
		}

		out.Tables[name] = ts
		out.TotalSize += ts.SizeBytes
	}
	return out, nil
}
