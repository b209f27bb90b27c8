// Package stocker is a portfolio valuation engine.
//
// It replays a per-user ledger of trades and cash movements to compute:
//   - open positions, using FIFO lot matching on both long and short sides,
//     including flips from one side to the other;
//   - realized and unrealized profit and loss, per symbol and in aggregate;
//   - per-currency cash balances and a consolidated net liquidity in a base currency;
//   - an immutable start-of-day snapshot used as the baseline for "today's change";
//   - monthly trading statistics derived from closed lots.
//
// The engine is stateless: every computation replays the ledger read from a
// [LedgerStore], so an amended or deleted transaction is reflected by the very
// next read. Prices and exchange rates are supplied by collaborators
// ([PriceSource], [RateSource]) that may fail; failures downgrade the affected
// symbol to "stale" rather than failing the whole computation.
//
// This package serves as the foundational logic for the `stk` command-line
// tool.
package stocker
