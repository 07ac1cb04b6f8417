package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/tracklet-io/tracklet/internal/model"
)

// DataRunTypeFilter narrows a catalog lookup. Nil fields match
// everything.
type DataRunTypeFilter struct {
	IDCategory   *int
	IDType       *int
	CategoryName *string
	TypeName     *string
}

// GetDataRunTypes lists outcome catalog entries matching the filter.
func (db *DB) GetDataRunTypes(ctx context.Context, f DataRunTypeFilter) ([]model.DataRunType, error) {
	var (
		conds []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.IDCategory != nil {
		add("id_category", *f.IDCategory)
	}
	if f.IDType != nil {
		add("id_type", *f.IDType)
	}
	if f.CategoryName != nil {
		add("category_name", *f.CategoryName)
	}
	if f.TypeName != nil {
		add("type_name", *f.TypeName)
	}

	q := `SELECT id_category, id_type, category_name, type_name FROM data_run_types`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY id_category, id_type"

	rows, err := db.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: get data run types: %w", err)
	}
	defer rows.Close()

	var types []model.DataRunType
	for rows.Next() {
		var t model.DataRunType
		if err := rows.Scan(&t.IDCategory, &t.IDType, &t.CategoryName, &t.TypeName); err != nil {
			return nil, fmt.Errorf("storage: scan data run type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}
