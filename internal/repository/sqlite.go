package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"influxdb-listener/internal/domain"
	"influxdb-listener/internal/util"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps points in a local SQLite file, one table per storage name.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	table  string
	logger util.Logger
}

func NewSQLiteStore(path, table string) *SQLiteStore {
	return &SQLiteStore{dbPath: path, table: table}
}

// SetLogger routes the store's messages to logger. Without one they are
// discarded.
func (s *SQLiteStore) SetLogger(logger util.Logger) {
	s.logger = logger
}

func (s *SQLiteStore) logEvent(v ...interface{}) {
	if s.logger != nil {
		s.logger.LogEvent(v...)
	}
}

// NewSQLiteStoreFromDB wraps an already opened database.
func NewSQLiteStoreFromDB(db *sql.DB, table string) *SQLiteStore {
	return &SQLiteStore{db: db, table: table}
}

func (s *SQLiteStore) Init() error {
	var err error

	if s.db == nil {
		s.db, err = sql.Open("sqlite3", s.dbPath)
		if err != nil {
			return fmt.Errorf("error opening database: %w", err)
		}
	}

	if err = s.db.Ping(); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	s.logEvent(util.LOG_LEVEL_INFO, "SQLiteStore initialized. table - ", s.table)
	return nil
}

func (s *SQLiteStore) ListStorages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("error listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		names = append(names, name)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return names, nil
}

func (s *SQLiteStore) CreateStorage(ctx context.Context, name string) error {
	table := quoteIdent(name)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS ` + table + ` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		measurement TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		precision TEXT NOT NULL,
		tags TEXT NOT NULL,
		fields TEXT NOT NULL
	);`

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("error creating table: %w", err)
	}

	createIndexSQL := `CREATE INDEX IF NOT EXISTS ` + quoteIdent(name+"_measurement_ts") +
		` ON ` + table + ` (measurement, timestamp)`
	if _, err := s.db.ExecContext(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("error creating index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) WritePoints(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quoteIdent(s.table)+"(measurement, timestamp, precision, tags, fields) VALUES(?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return fmt.Errorf("error encoding tags: %w", err)
		}
		fields, err := encodeFields(p.Fields)
		if err != nil {
			return err
		}

		if _, err = stmt.ExecContext(ctx, p.Measurement, p.Time.UnixNano(), string(p.Precision), string(tags), string(fields)); err != nil {
			return fmt.Errorf("error inserting point: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing points: %w", err)
	}
	return nil
}

// GetPoints returns points of measurement with start <= time <= end (unix
// nanoseconds), oldest first. An empty measurement matches all.
func (s *SQLiteStore) GetPoints(ctx context.Context, measurement string, startTime, endTime int64, limit, offset int) ([]domain.Point, error) {
	query := "SELECT measurement, timestamp, precision, tags, fields FROM " + quoteIdent(s.table) + " WHERE timestamp >= ? AND timestamp <= ?"
	args := []interface{}{startTime, endTime}

	if measurement != "" {
		query += " AND measurement = ?"
		args = append(args, measurement)
	}
	query += " ORDER BY timestamp ASC, id ASC"

	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ?"
	args = append(args, limit)

	if offset < 0 {
		offset = 0
	}
	query += " OFFSET ?"
	args = append(args, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	var fetched []domain.Point

	for rows.Next() {
		var (
			p         domain.Point
			ts        int64
			precision string
			tags      string
			fields    string
		)

		if err := rows.Scan(&p.Measurement, &ts, &precision, &tags, &fields); err != nil {
			s.logEvent(util.LOG_LEVEL_ERROR, "Error scanning row. Err - ", err)
			continue
		}
		p.Time = time.Unix(0, ts)
		p.Precision = domain.Precision(precision)
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			s.logEvent(util.LOG_LEVEL_ERROR, "Error decoding tags. Err - ", err)
			continue
		}
		if p.Fields, err = decodeFields([]byte(fields)); err != nil {
			s.logEvent(util.LOG_LEVEL_ERROR, "Error decoding fields. Err - ", err)
			continue
		}
		fetched = append(fetched, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return fetched, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// storedField keeps the value type so integers survive the JSON round trip.
type storedField struct {
	Key   string          `json:"key"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

const (
	fieldTypeInt    = "i"
	fieldTypeFloat  = "f"
	fieldTypeString = "s"
)

func encodeFields(fields []domain.Field) ([]byte, error) {
	stored := make([]storedField, 0, len(fields))
	for _, f := range fields {
		var typ string
		switch f.Value.(type) {
		case int64:
			typ = fieldTypeInt
		case float64:
			typ = fieldTypeFloat
		case string:
			typ = fieldTypeString
		default:
			return nil, fmt.Errorf("%w: %s=%T", domain.ErrUnsupportedField, f.Key, f.Value)
		}

		raw, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("error encoding field %s: %w", f.Key, err)
		}
		stored = append(stored, storedField{Key: f.Key, Type: typ, Value: raw})
	}
	return json.Marshal(stored)
}

func decodeFields(raw []byte) ([]domain.Field, error) {
	var stored []storedField
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}

	fields := make([]domain.Field, 0, len(stored))
	for _, sf := range stored {
		var (
			v   interface{}
			err error
		)
		switch sf.Type {
		case fieldTypeInt:
			var i int64
			err = json.Unmarshal(sf.Value, &i)
			v = i
		case fieldTypeFloat:
			var f float64
			err = json.Unmarshal(sf.Value, &f)
			v = f
		default:
			var s string
			err = json.Unmarshal(sf.Value, &s)
			v = s
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Key, err)
		}
		fields = append(fields, domain.Field{Key: sf.Key, Value: v})
	}
	return fields, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ domain.PointStore = (*SQLiteStore)(nil)
