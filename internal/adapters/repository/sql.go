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

	"github.com/okian/funbet/internal/domain/model"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name      string
	numbered  bool // $1 placeholders instead of ?
	migration []string
}

// sqlStore implements Store over database/sql. Statements are written with
// ? placeholders and rebound for dialects that number them.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

const matchRowID = 1

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, o options) (*sqlStore, error) {
	db.SetMaxOpenConns(o.maxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, o.connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping: %w", d.name, err)
	}

	s := &sqlStore{db: db, d: d}
	for _, stmt := range d.migration {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s migrate: %w", d.name, err)
		}
	}
	return s, nil
}

func (s *sqlStore) q(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) LoadMatch(ctx context.Context) (model.Match, error) {
	defer observe("load_match", time.Now())
	var doc string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT doc FROM match_document WHERE id = ?`), matchRowID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Match{}, ErrNotFound
	}
	if err != nil {
		return model.Match{}, fmt.Errorf("load match: %w", err)
	}
	m := model.NewMatch()
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return model.Match{}, fmt.Errorf("decode match: %w", err)
	}
	return m, nil
}

func (s *sqlStore) SaveMatch(ctx context.Context, m model.Match) error {
	defer observe("save_match", time.Now())
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.q(`
INSERT INTO match_document (id, doc, updated_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`),
		matchRowID, string(doc), m.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	return nil
}

func (s *sqlStore) LoadAccount(ctx context.Context, id string) (model.Account, error) {
	defer observe("load_account", time.Now())
	row := s.db.QueryRowContext(ctx, s.q(`
SELECT id, display_name, balance, rank, permissions, updated_at FROM accounts WHERE id = ?`), id)
	a, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("load account %s: %w", id, err)
	}
	return a, nil
}

func (s *sqlStore) SaveAccount(ctx context.Context, a model.Account) error {
	defer observe("save_account", time.Now())
	_, err := s.db.ExecContext(ctx, s.q(`
INSERT INTO accounts (id, display_name, balance, rank, permissions, updated_at) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	display_name = excluded.display_name,
	balance = excluded.balance,
	rank = excluded.rank,
	permissions = excluded.permissions,
	updated_at = excluded.updated_at`),
		a.ID, a.DisplayName, a.Balance, a.Rank, strings.Join(a.Permissions, ","), a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save account %s: %w", a.ID, err)
	}
	return nil
}

func (s *sqlStore) TopAccounts(ctx context.Context, n int) ([]model.Account, error) {
	defer observe("top_accounts", time.Now())
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT id, display_name, balance, rank, permissions, updated_at FROM accounts
ORDER BY rank DESC, display_name ASC, id ASC LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("top accounts: %w", err)
	}
	defer rows.Close()

	out := make([]model.Account, 0, n)
	for rows.Next() {
		a, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqlStore) CountAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (s *sqlStore) SaveWager(ctx context.Context, w model.Wager) error {
	defer observe("save_wager", time.Now())
	_, err := s.db.ExecContext(ctx, s.q(`
INSERT INTO wagers (account_id, participant, amount, placed_at) VALUES (?, ?, ?, ?)
ON CONFLICT (account_id) DO UPDATE SET
	participant = excluded.participant,
	amount = excluded.amount,
	placed_at = excluded.placed_at`),
		w.AccountID, w.ParticipantKey, w.Amount, w.PlacedAt.UTC())
	if err != nil {
		return fmt.Errorf("save wager %s: %w", w.AccountID, err)
	}
	return nil
}

func (s *sqlStore) LoadWagers(ctx context.Context) ([]model.Wager, error) {
	defer observe("load_wagers", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, participant, amount, placed_at FROM wagers ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("load wagers: %w", err)
	}
	defer rows.Close()

	var out []model.Wager
	for rows.Next() {
		var w model.Wager
		if err := rows.Scan(&w.AccountID, &w.ParticipantKey, &w.Amount, &w.PlacedAt); err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *sqlStore) DeleteWagers(ctx context.Context) error {
	defer observe("delete_wagers", time.Now())
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wagers`); err != nil {
		return fmt.Errorf("delete wagers: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func scanAccount(scan func(dest ...any) error) (model.Account, error) {
	var (
		a     model.Account
		perms string
	)
	if err := scan(&a.ID, &a.DisplayName, &a.Balance, &a.Rank, &perms, &a.UpdatedAt); err != nil {
		return model.Account{}, err
	}
	if perms != "" {
		a.Permissions = strings.Split(perms, ",")
	}
	return a, nil
}
