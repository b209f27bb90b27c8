package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/stocker"
	"github.com/google/subcommands"
)

// recordEntry records e and echoes it as a JSON line.
func recordEntry(ctx context.Context, a *app, e stocker.Entry) error {
	if err := a.engine.Record(ctx, e); err != nil {
		return err
	}
	return stocker.EncodeEntry(os.Stdout, e)
}

// parseTrade builds a trade from command line values. An empty currency means
// the base currency.
func parseTrade(action stocker.CommandType, on, user, symbol, quantity, price, fees, currency, base string) (stocker.Transaction, error) {
	if currency == "" {
		currency = base
	}
	day, err := stocker.ParseDate(on)
	if err != nil {
		return stocker.Transaction{}, fmt.Errorf("%w: %v", stocker.ErrInvalidInput, err)
	}
	q, err := stocker.ParseQuantity(quantity)
	if err != nil {
		return stocker.Transaction{}, err
	}
	p, err := stocker.ParseMoney(price, currency)
	if err != nil {
		return stocker.Transaction{}, err
	}
	if fees == "" {
		fees = "0"
	}
	fee, err := stocker.ParseMoney(fees, currency)
	if err != nil {
		return stocker.Transaction{}, err
	}
	switch action {
	case stocker.CmdSell:
		return stocker.NewSell(day, user, symbol, q, p, fee), nil
	case stocker.CmdDividend:
		return stocker.NewDividend(day, user, symbol, q, p, fee), nil
	default:
		return stocker.NewBuy(day, user, symbol, q, p, fee), nil
	}
}

// --- Buy, Sell and Dividend Commands ---

type tradeCmd struct {
	action   stocker.CommandType
	user     string
	date     string
	symbol   string
	quantity string
	price    string
	fees     string
	currency string
	memo     string
}

var tradeSynopsis = map[stocker.CommandType]string{
	stocker.CmdBuy:      "buy shares to open or add to a position, or to cover a short",
	stocker.CmdSell:     "sell shares to trim or close a position, or to open a short",
	stocker.CmdDividend: "record a dividend paid on a symbol",
}

func (c *tradeCmd) Name() string     { return string(c.action) }
func (c *tradeCmd) Synopsis() string { return tradeSynopsis[c.action] }
func (c *tradeCmd) Usage() string {
	if c.action == stocker.CmdDividend {
		return `dividend -u <user> -d <date> -s <symbol> -q <shares> -p <amount per share> [-f <fees>] [-c <currency>] [-m <memo>]

  Records a dividend of amount per share on the given number of shares.
  The net amount is credited to the cash account of the currency.
`
	}
	return fmt.Sprintf(`%s -u <user> -d <date> -s <symbol> -q <quantity> -p <price> [-f <fees>] [-c <currency>] [-m <memo>]

  Records a %s at the given price. Lots are matched first in, first out;
  the cash account of the currency is updated with the trade amount and fees.
`, c.action, c.action)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.StringVar(&c.date, "d", stocker.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.symbol, "s", "", "Symbol")
	f.StringVar(&c.quantity, "q", "", "Number of shares")
	f.StringVar(&c.price, "p", "", "Price per share")
	f.StringVar(&c.fees, "f", "0", "Fees, in the trading currency")
	f.StringVar(&c.currency, "c", "", "Trading currency (defaults to the base currency)")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note for the transaction")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.symbol == "" || c.quantity == "" || c.price == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "recording "+string(c.action), func(ctx context.Context, a *app) error {
		tx, err := parseTrade(c.action, c.date, c.user, c.symbol, c.quantity, c.price, c.fees, c.currency, a.cfg.BaseCurrency)
		if err != nil {
			return err
		}
		tx.Notes = c.memo
		return recordEntry(ctx, a, tx)
	})
}

// --- Deposit and Withdraw Commands ---

type cashCmd struct {
	action   stocker.CommandType
	user     string
	date     string
	amount   string
	currency string
	memo     string
}

func (c *cashCmd) Name() string { return string(c.action) }
func (c *cashCmd) Synopsis() string {
	if c.action == stocker.CmdWithdraw {
		return "withdraw cash from the portfolio"
	}
	return "deposit cash into the portfolio"
}
func (c *cashCmd) Usage() string {
	return fmt.Sprintf(`%s -u <user> -d <date> -a <amount> [-c <currency>] [-m <memo>]

  Records a %s. Deposits and withdrawals make the invested capital.
`, c.action, c.action)
}

func (c *cashCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.StringVar(&c.date, "d", stocker.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.amount, "a", "", "Amount")
	f.StringVar(&c.currency, "c", "", "Currency (defaults to the base currency)")
	f.StringVar(&c.memo, "m", "", "An optional note")
}

func (c *cashCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.amount == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "recording "+string(c.action), func(ctx context.Context, a *app) error {
		day, err := stocker.ParseDate(c.date)
		if err != nil {
			return fmt.Errorf("%w: %v", stocker.ErrInvalidInput, err)
		}
		currency := c.currency
		if currency == "" {
			currency = a.cfg.BaseCurrency
		}
		amount, err := stocker.ParseMoney(c.amount, currency)
		if err != nil {
			return err
		}
		cf := stocker.NewDeposit(day, c.user, amount)
		if c.action == stocker.CmdWithdraw {
			cf = stocker.NewWithdraw(day, c.user, amount)
		}
		cf.Notes = c.memo
		return recordEntry(ctx, a, cf)
	})
}

// --- Amend Command ---

type amendCmd struct {
	user     string
	id       string
	date     string
	symbol   string
	quantity string
	price    string
	fees     string
	amount   string
	currency string
	memo     string
}

func (*amendCmd) Name() string     { return "amend" }
func (*amendCmd) Synopsis() string { return "change the fields of a recorded entry" }
func (*amendCmd) Usage() string {
	return `amend -u <user> -id <id> [-d <date>] [-s <symbol>] [-q <quantity>] [-p <price>] [-f <fees>] [-a <amount>] [-c <currency>] [-m <memo>]

  Replaces the given fields of an entry, the others are kept. A trade stays a
  trade and a cash flow stays a cash flow. Every figure is recomputed from the
  amended history.
`
}

func (c *amendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.StringVar(&c.id, "id", "", "Id of the entry to amend")
	f.StringVar(&c.date, "d", "", "New date")
	f.StringVar(&c.symbol, "s", "", "New symbol (trades)")
	f.StringVar(&c.quantity, "q", "", "New quantity (trades)")
	f.StringVar(&c.price, "p", "", "New price (trades)")
	f.StringVar(&c.fees, "f", "", "New fees (trades)")
	f.StringVar(&c.amount, "a", "", "New amount (cash flows)")
	f.StringVar(&c.currency, "c", "", "New currency")
	f.StringVar(&c.memo, "m", "", "New memo")
}

func (c *amendCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.id == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	return run(ctx, "amending entry", func(ctx context.Context, a *app) error {
		ledger, err := a.engine.Ledger(ctx, c.user)
		if err != nil {
			return err
		}
		e, ok := ledger.Get(c.id)
		if !ok {
			return fmt.Errorf("entry %q: %w", c.id, stocker.ErrNotFound)
		}
		amended, err := c.amend(e, set)
		if err != nil {
			return err
		}
		if err := a.engine.Amend(ctx, amended); err != nil {
			return err
		}
		return stocker.EncodeEntry(os.Stdout, amended)
	})
}

// amend applies the flags that were set to e.
func (c *amendCmd) amend(e stocker.Entry, set map[string]bool) (stocker.Entry, error) {
	var day stocker.Date
	if set["d"] {
		var err error
		if day, err = stocker.ParseDate(c.date); err != nil {
			return nil, fmt.Errorf("%w: %v", stocker.ErrInvalidInput, err)
		}
	}
	switch e := e.(type) {
	case stocker.Transaction:
		if set["a"] {
			return nil, fmt.Errorf("%w: -a applies to cash flows, use -q and -p", stocker.ErrInvalidInput)
		}
		quantity, price, fees, currency := e.Quantity.String(), e.Price.Decimal().String(), e.Fees.Decimal().String(), e.Currency()
		if set["q"] {
			quantity = c.quantity
		}
		if set["p"] {
			price = c.price
		}
		if set["f"] {
			fees = c.fees
		}
		if set["c"] {
			currency = c.currency
		}
		tx, err := parseTrade(e.Action, e.Date.String(), e.User, e.Symbol, quantity, price, fees, currency, currency)
		if err != nil {
			return nil, err
		}
		tx.ID, tx.CreatedAt, tx.Notes = e.ID, e.CreatedAt, e.Notes
		if set["d"] {
			tx.Date = day
		}
		if set["s"] {
			tx.Symbol = c.symbol
		}
		if set["m"] {
			tx.Notes = c.memo
		}
		return tx, nil
	case stocker.CashFlow:
		if set["s"] || set["q"] || set["p"] || set["f"] {
			return nil, fmt.Errorf("%w: -s, -q, -p and -f apply to trades, use -a", stocker.ErrInvalidInput)
		}
		amount, currency := e.Amount.Decimal().String(), e.Currency()
		if set["a"] {
			amount = c.amount
		}
		if set["c"] {
			currency = c.currency
		}
		m, err := stocker.ParseMoney(amount, currency)
		if err != nil {
			return nil, err
		}
		e.Amount = m
		if set["d"] {
			e.Date = day
		}
		if set["m"] {
			e.Notes = c.memo
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w: unsupported entry %T", stocker.ErrInvalidInput, e)
}

// --- Delete Command ---

type deleteCmd struct {
	user string
	id   string
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete a recorded entry" }
func (*deleteCmd) Usage() string {
	return `delete -u <user> -id <id>

  Removes an entry from the ledger. Every figure is recomputed without it.
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.StringVar(&c.id, "id", "", "Id of the entry to delete")
}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.id == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "deleting entry", func(ctx context.Context, a *app) error {
		if err := a.engine.Delete(ctx, c.user, c.id); err != nil {
			return err
		}
		fmt.Printf("Successfully deleted entry %s\n", c.id)
		return nil
	})
}
