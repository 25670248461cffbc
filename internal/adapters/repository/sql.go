package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/pkg/metrics"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS players (
	id BIGINT PRIMARY KEY,
	position TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS squads (
	manager_id TEXT PRIMARY KEY,
	starting_xi TEXT NOT NULL,
	bench TEXT NOT NULL,
	updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS game_events (
	game_id TEXT NOT NULL,
	player_id BIGINT NOT NULL,
	event TEXT NOT NULL,
	PRIMARY KEY (game_id, player_id)
);

CREATE TABLE IF NOT EXISTS results (
	manager_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	total BIGINT NOT NULL,
	substituted_in TEXT NOT NULL,
	substitutions TEXT NOT NULL,
	finalized_at BIGINT NOT NULL,
	PRIMARY KEY (manager_id, game_id)
);
`

// SQLStore is a Store over database/sql. The same statements run on SQLite
// and PostgreSQL; placeholders are written as ? and rebound for postgres.
type SQLStore struct {
	db     *sql.DB
	driver string

	maxOpenConns    int
	connMaxLifetime time.Duration
}

var _ Store = (*SQLStore)(nil)

// OpenSQL opens dsn with driver and creates the schema.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	s := &SQLStore{db: db, driver: driver}
	if driver == DriverSQLite {
		// one writer; avoids SQLITE_BUSY under concurrent workers
		s.maxOpenConns = 1
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if s.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.connMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (s *SQLStore) observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(s.driver, op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreError(s.driver, op)
	}
}

func (s *SQLStore) PutPlayers(ctx context.Context, players []model.Player) (err error) {
	defer func(start time.Time) { s.observe("put_players", start, err) }(time.Now())

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(
			`INSERT INTO players (id, position) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET position = excluded.position`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range players {
			if _, err := stmt.ExecContext(ctx, p.ID, string(p.Position)); err != nil {
				return fmt.Errorf("player %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) Positions(ctx context.Context, ids []int) (out map[int]model.Position, err error) {
	defer func(start time.Time) { s.observe("positions", start, err) }(time.Now())

	out = make(map[int]model.Position, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT id, position FROM players WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int
			pos string
		)
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, err
		}
		out[id] = model.Position(pos)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutSquad(ctx context.Context, managerID string, squad model.Squad) (err error) {
	defer func(start time.Time) { s.observe("put_squad", start, err) }(time.Now())

	xi, err := json.Marshal(squad.StartingXI)
	if err != nil {
		return err
	}
	bench, err := json.Marshal(squad.Bench)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO squads (manager_id, starting_xi, bench, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (manager_id) DO UPDATE SET starting_xi = excluded.starting_xi, bench = excluded.bench, updated_at = excluded.updated_at`),
		managerID, string(xi), string(bench), time.Now().UnixMilli())
	return err
}

func (s *SQLStore) Squad(ctx context.Context, managerID string) (sq model.Squad, err error) {
	defer func(start time.Time) { s.observe("squad", start, err) }(time.Now())

	var xi, bench string
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT starting_xi, bench FROM squads WHERE manager_id = ?`), managerID).Scan(&xi, &bench)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Squad{}, fmt.Errorf("squad %s: %w", managerID, ErrNotFound)
	}
	if err != nil {
		return model.Squad{}, err
	}
	if err := json.Unmarshal([]byte(xi), &sq.StartingXI); err != nil {
		return model.Squad{}, fmt.Errorf("decode starting xi: %w", err)
	}
	if err := json.Unmarshal([]byte(bench), &sq.Bench); err != nil {
		return model.Squad{}, fmt.Errorf("decode bench: %w", err)
	}
	return sq, nil
}

func (s *SQLStore) Managers(ctx context.Context) (out []string, err error) {
	defer func(start time.Time) { s.observe("managers", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT manager_id FROM squads ORDER BY manager_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutGameEvents(ctx context.Context, gameID string, events model.Events, status model.GameStatus) (err error) {
	defer func(start time.Time) { s.observe("put_game_events", start, err) }(time.Now())

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO games (id, status, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`),
			gameID, string(status), time.Now().UnixMilli()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM game_events WHERE game_id = ?`), gameID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO game_events (game_id, player_id, event) VALUES (?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for id, ev := range events {
			b, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, gameID, id, string(b)); err != nil {
				return fmt.Errorf("event for player %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) GameEvents(ctx context.Context, gameID string) (out model.Events, err error) {
	defer func(start time.Time) { s.observe("game_events", start, err) }(time.Now())

	if _, err := s.Game(ctx, gameID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT player_id, event FROM game_events WHERE game_id = ?`), gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out = model.Events{}
	for rows.Next() {
		var (
			id  int
			raw string
			ev  model.MatchEvent
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode event for player %d: %w", id, err)
		}
		out[id] = ev
	}
	return out, rows.Err()
}

func (s *SQLStore) Game(ctx context.Context, gameID string) (model.Game, error) {
	var status string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT status FROM games WHERE id = ?`), gameID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Game{}, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return model.Game{}, err
	}
	return model.Game{ID: gameID, Status: model.GameStatus(status)}, nil
}

func (s *SQLStore) Games(ctx context.Context, status model.GameStatus) (out []model.Game, err error) {
	defer func(start time.Time) { s.observe("games", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id FROM games WHERE status = ? ORDER BY id`), string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out = []model.Game{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, model.Game{ID: id, Status: status})
	}
	return out, rows.Err()
}

func (s *SQLStore) SetGameStatus(ctx context.Context, gameID string, status model.GameStatus) (err error) {
	defer func(start time.Time) { s.observe("set_game_status", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE games SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), time.Now().UnixMilli(), gameID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) SaveResult(ctx context.Context, r model.GameResult) (err error) {
	defer func(start time.Time) { s.observe("save_result", start, err) }(time.Now())

	subsIn, err := json.Marshal(nonNil(r.SubstitutedIn))
	if err != nil {
		return err
	}
	subs, err := json.Marshal(nonNil(r.Substitutions))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO results (manager_id, game_id, total, substituted_in, substitutions, finalized_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (manager_id, game_id) DO UPDATE SET total = excluded.total, substituted_in = excluded.substituted_in,
			substitutions = excluded.substitutions, finalized_at = excluded.finalized_at`),
		r.ManagerID, r.GameID, r.Total, string(subsIn), string(subs), r.FinalizedAt.UnixMilli())
	return err
}

func (s *SQLStore) Result(ctx context.Context, managerID, gameID string) (r model.GameResult, err error) {
	defer func(start time.Time) { s.observe("result", start, err) }(time.Now())

	var (
		subsIn, subs string
		at           int64
	)
	err = s.db.QueryRowContext(ctx, s.rebind(
		`SELECT total, substituted_in, substitutions, finalized_at FROM results WHERE manager_id = ? AND game_id = ?`),
		managerID, gameID).Scan(&r.Total, &subsIn, &subs, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GameResult{}, fmt.Errorf("result %s/%s: %w", gameID, managerID, ErrNotFound)
	}
	if err != nil {
		return model.GameResult{}, err
	}
	if err := json.Unmarshal([]byte(subsIn), &r.SubstitutedIn); err != nil {
		return model.GameResult{}, fmt.Errorf("decode substituted_in: %w", err)
	}
	if err := json.Unmarshal([]byte(subs), &r.Substitutions); err != nil {
		return model.GameResult{}, fmt.Errorf("decode substitutions: %w", err)
	}
	r.ManagerID, r.GameID = managerID, gameID
	r.FinalizedAt = time.UnixMilli(at).UTC()
	return r, nil
}

func (s *SQLStore) SeasonTotal(ctx context.Context, managerID string) (total int, err error) {
	defer func(start time.Time) { s.observe("season_total", start, err) }(time.Now())

	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT COALESCE(SUM(total), 0) FROM results WHERE manager_id = ?`), managerID).Scan(&total)
	return total, err
}

func (s *SQLStore) SeasonTotals(ctx context.Context) (out map[string]int, err error) {
	defer func(start time.Time) { s.observe("season_totals", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT manager_id, SUM(total) FROM results GROUP BY manager_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out = make(map[string]int)
	for rows.Next() {
		var (
			id    string
			total int
		)
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		out[id] = total
	}
	return out, rows.Err()
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
