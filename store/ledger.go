package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/etnz/stocker"
	"github.com/rs/zerolog"
)

// timeFormat sorts lexicographically for UTC instants.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// LedgerRepository is a stocker.LedgerStore backed by the transactions and
// cash_flows tables.
type LedgerRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ stocker.LedgerStore = (*LedgerRepository)(nil)

// Entries returns all entries of user, by creation instant then insertion order.
func (r *LedgerRepository) Entries(ctx context.Context, user string) ([]stocker.Entry, error) {
	txs, err := r.transactions(ctx, user)
	if err != nil {
		return nil, err
	}
	flows, err := r.cashFlows(ctx, user)
	if err != nil {
		return nil, err
	}
	entries := append(txs, flows...)
	slices.SortStableFunc(entries, func(a, b stocker.Entry) int { return a.Created().Compare(b.Created()) })
	return entries, nil
}

func (r *LedgerRepository) transactions(ctx context.Context, user string) ([]stocker.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, symbol, action, date, price, quantity, fees, currency, notes, created_at
		FROM transactions WHERE user_id = ? ORDER BY seq`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var entries []stocker.Entry
	for rows.Next() {
		var (
			t                                                stocker.Transaction
			action, day, price, quantity, fees, cur, created string
		)
		if err := rows.Scan(&t.ID, &t.User, &t.Symbol, &action, &day, &price, &quantity, &fees, &cur, &t.Notes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Action = stocker.CommandType(action)
		if err := parseRow(t.ID, func() (err error) {
			if t.Date, err = stocker.ParseDate(day); err != nil {
				return err
			}
			if t.Price, err = stocker.ParseMoney(price, cur); err != nil {
				return err
			}
			if t.Quantity, err = stocker.ParseQuantity(quantity); err != nil {
				return err
			}
			if t.Fees, err = stocker.ParseMoney(fees, cur); err != nil {
				return err
			}
			t.CreatedAt, err = time.Parse(timeFormat, created)
			return err
		}); err != nil {
			return nil, err
		}
		entries = append(entries, t)
	}
	return entries, rows.Err()
}

func (r *LedgerRepository) cashFlows(ctx context.Context, user string) ([]stocker.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, date, amount, currency, notes, created_at
		FROM cash_flows WHERE user_id = ? ORDER BY seq`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash flows: %w", err)
	}
	defer rows.Close()

	var entries []stocker.Entry
	for rows.Next() {
		var (
			c                              stocker.CashFlow
			typ, day, amount, cur, created string
		)
		if err := rows.Scan(&c.ID, &c.User, &typ, &day, &amount, &cur, &c.Notes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan cash flow: %w", err)
		}
		c.Type = stocker.CommandType(typ)
		if err := parseRow(c.ID, func() (err error) {
			if c.Date, err = stocker.ParseDate(day); err != nil {
				return err
			}
			if c.Amount, err = stocker.ParseMoney(amount, cur); err != nil {
				return err
			}
			c.CreatedAt, err = time.Parse(timeFormat, created)
			return err
		}); err != nil {
			return nil, err
		}
		entries = append(entries, c)
	}
	return entries, rows.Err()
}

func parseRow(id string, parse func() error) error {
	if err := parse(); err != nil {
		return fmt.Errorf("corrupted ledger row %s: %w", id, err)
	}
	return nil
}

// AppendEntry inserts e. Ids are unique across transactions and cash flows.
func (r *LedgerRepository) AppendEntry(ctx context.Context, e stocker.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM transactions WHERE id = ?) + (SELECT COUNT(*) FROM cash_flows WHERE id = ?)`,
		e.EntryID(), e.EntryID()).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check entry id: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: duplicate entry id %q", stocker.ErrInvalidInput, e.EntryID())
	}

	switch e := e.(type) {
	case stocker.Transaction:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (id, user_id, symbol, action, date, price, quantity, fees, currency, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.User, e.Symbol, string(e.Action), e.Date.String(),
			e.Price.Decimal().String(), e.Quantity.String(), e.Fees.Decimal().String(), e.Currency(),
			e.Notes, e.CreatedAt.UTC().Format(timeFormat))
	case stocker.CashFlow:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cash_flows (id, user_id, type, date, amount, currency, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.User, string(e.Type), e.Date.String(),
			e.Amount.Decimal().String(), e.Currency(), e.Notes, e.CreatedAt.UTC().Format(timeFormat))
	}
	if err != nil {
		return fmt.Errorf("failed to insert entry %s: %w", e.EntryID(), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entry %s: %w", e.EntryID(), err)
	}
	r.log.Debug().Str("user", e.Owner()).Str("id", e.EntryID()).Msg("entry appended")
	return nil
}

// ReplaceEntry overwrites the entry with the same id and owner as e.
func (r *LedgerRepository) ReplaceEntry(ctx context.Context, e stocker.Entry) error {
	var (
		res sql.Result
		err error
	)
	switch e := e.(type) {
	case stocker.Transaction:
		res, err = r.db.ExecContext(ctx, `
			UPDATE transactions SET symbol = ?, action = ?, date = ?, price = ?, quantity = ?, fees = ?,
				currency = ?, notes = ?, created_at = ?
			WHERE id = ? AND user_id = ?`,
			e.Symbol, string(e.Action), e.Date.String(), e.Price.Decimal().String(), e.Quantity.String(),
			e.Fees.Decimal().String(), e.Currency(), e.Notes, e.CreatedAt.UTC().Format(timeFormat),
			e.ID, e.User)
	case stocker.CashFlow:
		res, err = r.db.ExecContext(ctx, `
			UPDATE cash_flows SET type = ?, date = ?, amount = ?, currency = ?, notes = ?, created_at = ?
			WHERE id = ? AND user_id = ?`,
			string(e.Type), e.Date.String(), e.Amount.Decimal().String(), e.Currency(), e.Notes,
			e.CreatedAt.UTC().Format(timeFormat), e.ID, e.User)
	}
	if err != nil {
		return fmt.Errorf("failed to update entry %s: %w", e.EntryID(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update entry %s: %w", e.EntryID(), err)
	}
	if n > 0 {
		return nil
	}

	// nothing updated: either unknown, or the id is on the other table.
	var count int
	err = r.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM transactions WHERE id = ? AND user_id = ?) + (SELECT COUNT(*) FROM cash_flows WHERE id = ? AND user_id = ?)`,
		e.EntryID(), e.Owner(), e.EntryID(), e.Owner()).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check entry id: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: entry %q cannot change kind to %s", stocker.ErrInvalidInput, e.EntryID(), e.What())
	}
	return fmt.Errorf("entry %q: %w", e.EntryID(), stocker.ErrNotFound)
}

// RemoveEntry deletes the entry id of user.
func (r *LedgerRepository) RemoveEntry(ctx context.Context, user, id string) error {
	var total int64
	for _, table := range []string{"transactions", "cash_flows"} {
		res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ? AND user_id = ?", id, user)
		if err != nil {
			return fmt.Errorf("failed to delete entry %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete entry %s: %w", id, err)
		}
		total += n
	}
	if total == 0 {
		return fmt.Errorf("entry %q: %w", id, stocker.ErrNotFound)
	}
	return nil
}

// Users returns every user that owns at least one entry, sorted.
func (r *LedgerRepository) Users(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM transactions UNION SELECT user_id FROM cash_flows ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
