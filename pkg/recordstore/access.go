package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM device_records ORDER BY class_name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (Record, error) {
	var rec Record
	var args string
	err := s.db.QueryRowContext(ctx,
		"SELECT class_name, args FROM device_records WHERE id = ?", id,
	).Scan(&rec.ClassName, &args)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.Args = json.RawMessage(args)
	return rec, nil
}

func (s *SQLiteStore) SetItem(ctx context.Context, id string, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO device_records (id, class_name, args, updated_at) "+
			"VALUES (?, ?, ?, ?) "+
			"ON CONFLICT(id) DO UPDATE SET class_name = excluded.class_name, "+
			"args = excluded.args, updated_at = excluded.updated_at",
		id,
		rec.ClassName,
		string(rec.Args),
		time.Now().UTC().Unix(),
	)
	return err
}

func (s *SQLiteStore) RemoveItem(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM device_records WHERE id = ?", id)
	return err
}
