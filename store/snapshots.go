package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/etnz/stocker"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotRepository is a stocker.SnapshotStore backed by the daily_snapshots
// table, whose UNIQUE(user_id, date) constraint arbitrates concurrent creations.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ stocker.SnapshotStore = (*SnapshotRepository)(nil)

const snapshotColumns = `user_id, date, base_currency, net_liquidity, current_cash, total_market_value,
	total_invested, net_profit, roi_percentage, cash_balances, positions, exchange_rates, unvalued, partial, created_at`

// snapshotRow is the storage form of a stocker.DailySnapshot.
type snapshotRow struct {
	user, date, base                                  string
	netLiquidity, cash, marketValue, invested, profit string
	roi                                               string
	cashBalances, positions, rates, unvalued          []byte
	partial                                           bool
	createdAt                                         string
}

func (r *snapshotRow) args() []any {
	return []any{r.user, r.date, r.base, r.netLiquidity, r.cash, r.marketValue, r.invested, r.profit,
		r.roi, r.cashBalances, r.positions, r.rates, r.unvalued, r.partial, r.createdAt}
}

func toRow(s stocker.DailySnapshot) (*snapshotRow, error) {
	row := &snapshotRow{
		user:         s.User,
		date:         s.Date.String(),
		base:         s.BaseCurrency,
		netLiquidity: s.NetLiquidity.Decimal().String(),
		cash:         s.CurrentCash.Decimal().String(),
		marketValue:  s.TotalMarketValue.Decimal().String(),
		invested:     s.TotalInvested.Decimal().String(),
		profit:       s.NetProfit.Decimal().String(),
		roi:          s.ROIPercentage.String(),
		partial:      s.Partial,
		createdAt:    s.CreatedAt.UTC().Format(timeFormat),
	}
	var err error
	if row.cashBalances, err = packMoney(s.CashBalances); err != nil {
		return nil, err
	}
	if row.positions, err = packMoney(s.Positions); err != nil {
		return nil, err
	}
	if row.rates, err = packDecimals(s.ExchangeRates); err != nil {
		return nil, err
	}
	if row.unvalued, err = msgpack.Marshal(s.Unvalued); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *snapshotRow) snapshot() (stocker.DailySnapshot, error) {
	s := stocker.DailySnapshot{User: r.user, BaseCurrency: r.base, Partial: r.partial}
	var err error
	if s.Date, err = stocker.ParseDate(r.date); err != nil {
		return s, err
	}
	for _, f := range []struct {
		dst   *stocker.Money
		value string
	}{
		{&s.NetLiquidity, r.netLiquidity},
		{&s.CurrentCash, r.cash},
		{&s.TotalMarketValue, r.marketValue},
		{&s.TotalInvested, r.invested},
		{&s.NetProfit, r.profit},
	} {
		if *f.dst, err = stocker.ParseMoney(f.value, r.base); err != nil {
			return s, err
		}
	}
	if s.ROIPercentage, err = decimal.NewFromString(r.roi); err != nil {
		return s, err
	}
	// cash balances stay in their own currency, positions are in base.
	if s.CashBalances, err = unpackMoney(r.cashBalances, ""); err != nil {
		return s, err
	}
	if s.Positions, err = unpackMoney(r.positions, r.base); err != nil {
		return s, err
	}
	if s.ExchangeRates, err = unpackDecimals(r.rates); err != nil {
		return s, err
	}
	// rows written before the column existed hold NULL.
	if len(r.unvalued) > 0 {
		if err = msgpack.Unmarshal(r.unvalued, &s.Unvalued); err != nil {
			return s, err
		}
	}
	s.CreatedAt, err = time.Parse(timeFormat, r.createdAt)
	return s, err
}

// packMoney encodes amounts as msgpack {key: "amount currency"}.
func packMoney(m map[string]stocker.Money) ([]byte, error) {
	raw := make(map[string][2]string, len(m))
	for k, v := range m {
		raw[k] = [2]string{v.Decimal().String(), v.Currency()}
	}
	return msgpack.Marshal(raw)
}

// unpackMoney decodes packMoney output; currency replaces empty stored currencies.
func unpackMoney(data []byte, currency string) (map[string]stocker.Money, error) {
	m := make(map[string]stocker.Money)
	if len(data) == 0 {
		return m, nil
	}
	var raw map[string][2]string
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		cur := v[1]
		if cur == "" {
			cur = currency
		}
		amount, err := stocker.ParseMoney(v[0], cur)
		if err != nil {
			return nil, err
		}
		m[k] = amount
	}
	return m, nil
}

func packDecimals(m map[string]decimal.Decimal) ([]byte, error) {
	raw := make(map[string]string, len(m))
	for k, v := range m {
		raw[k] = v.String()
	}
	return msgpack.Marshal(raw)
}

func unpackDecimals(data []byte) (map[string]decimal.Decimal, error) {
	m := make(map[string]decimal.Decimal)
	if len(data) == 0 {
		return m, nil
	}
	var raw map[string]string
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		m[k] = d
	}
	return m, nil
}

// InsertSnapshot stores s unless a snapshot exists for (s.User, s.Date).
func (r *SnapshotRepository) InsertSnapshot(ctx context.Context, s stocker.DailySnapshot) error {
	row, err := toRow(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO NOTHING`, row.args()...)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s on %s: %w", s.User, s.Date, stocker.ErrSnapshotConflict)
	}
	return nil
}

// ReplaceSnapshot stores s, overwriting the snapshot of the same (user, date).
func (r *SnapshotRepository) ReplaceSnapshot(ctx context.Context, s stocker.DailySnapshot) error {
	row, err := toRow(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO daily_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			base_currency = excluded.base_currency,
			net_liquidity = excluded.net_liquidity,
			current_cash = excluded.current_cash,
			total_market_value = excluded.total_market_value,
			total_invested = excluded.total_invested,
			net_profit = excluded.net_profit,
			roi_percentage = excluded.roi_percentage,
			cash_balances = excluded.cash_balances,
			positions = excluded.positions,
			exchange_rates = excluded.exchange_rates,
			unvalued = excluded.unvalued,
			partial = excluded.partial,
			created_at = excluded.created_at`, row.args()...)
	if err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

func scanSnapshot(scan func(dest ...any) error) (stocker.DailySnapshot, error) {
	var r snapshotRow
	err := scan(&r.user, &r.date, &r.base, &r.netLiquidity, &r.cash, &r.marketValue, &r.invested,
		&r.profit, &r.roi, &r.cashBalances, &r.positions, &r.rates, &r.unvalued, &r.partial, &r.createdAt)
	if err != nil {
		return stocker.DailySnapshot{}, err
	}
	s, err := r.snapshot()
	if err != nil {
		return stocker.DailySnapshot{}, fmt.Errorf("corrupted snapshot %s on %s: %w", r.user, r.date, err)
	}
	return s, nil
}

// Snapshot returns the snapshot of user on day.
func (r *SnapshotRepository) Snapshot(ctx context.Context, user string, day stocker.Date) (stocker.DailySnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM daily_snapshots WHERE user_id = ? AND date = ?`, user, day.String())
	s, err := scanSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return stocker.DailySnapshot{}, fmt.Errorf("%s on %s: %w", user, day, stocker.ErrSnapshotNotFound)
	}
	if err != nil {
		return stocker.DailySnapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return s, nil
}

// Snapshots returns up to limit snapshots of user, newest first.
func (r *SnapshotRepository) Snapshots(ctx context.Context, user string, limit int) ([]stocker.DailySnapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM daily_snapshots WHERE user_id = ? ORDER BY date DESC LIMIT ?`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var list []stocker.DailySnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
