package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/demodash/internal/database"
	"github.com/hitoshi/demodash/internal/model"
)

// SQLRowRepo はdemo_dataテーブルのリポジトリ。
type SQLRowRepo struct {
	db *database.DB
}

// NewSQLRowRepo はSQLRowRepoを生成する。
func NewSQLRowRepo(db *database.DB) *SQLRowRepo {
	return &SQLRowRepo{db: db}
}

// List は全行をid降順で返す。
func (r *SQLRowRepo) List(ctx context.Context) ([]model.Row, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, data FROM `+model.DemoTable+` ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s rows: %w", model.DemoTable, err)
	}
	defer rows.Close()

	result := []model.Row{}
	for rows.Next() {
		var (
			row  model.Row
			data sql.NullString
		)
		if err := rows.Scan(&row.ID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", model.DemoTable, err)
		}
		if data.Valid {
			row.Data = model.StringPtr(data.String)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", model.DemoTable, err)
	}

	return result, nil
}

// Insert は行を追加し、採番されたIDを返す。
func (r *SQLRowRepo) Insert(ctx context.Context, data *string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		r.db.Rebind(`INSERT INTO `+model.DemoTable+` (data) VALUES (?) RETURNING id`),
		data,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s row: %w", model.DemoTable, err)
	}
	return id, nil
}

// compile-time interface check
var _ RowRepository = (*SQLRowRepo)(nil)
