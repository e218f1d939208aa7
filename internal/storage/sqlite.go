package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "stacknotify/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendDispatch(ctx context.Context, r DispatchRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches(at, batch_id, idx, part, message_id, kind, sink, channel, outcome, status_code, skip_reason, err, took_ms, text)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), r.BatchID, r.Index, r.Part, nullStr(r.MessageID), r.Kind, r.Sink,
		nullStr(r.Channel), r.Outcome, r.StatusCode, nullStr(r.SkipReason), nullStr(r.Error), r.TookMS, nullStr(r.Text),
	)
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, limit int) ([]DispatchRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, batch_id, idx, part, message_id, kind, sink, channel, outcome, status_code, skip_reason, err, took_ms, text
		 FROM (SELECT * FROM dispatches ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DispatchRecord
	for rows.Next() {
		var (
			r                                          DispatchRecord
			at                                         string
			messageID, channel, skipReason, errS, text sql.NullString
		)
		if err := rows.Scan(&at, &r.BatchID, &r.Index, &r.Part, &messageID, &r.Kind, &r.Sink, &channel,
			&r.Outcome, &r.StatusCode, &skipReason, &errS, &r.TookMS, &text); err != nil {
			return nil, err
		}
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		r.MessageID = messageID.String
		r.Channel = channel.String
		r.SkipReason = skipReason.String
		r.Error = errS.String
		r.Text = text.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
