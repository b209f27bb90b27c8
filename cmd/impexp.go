package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/etnz/stocker"
	"github.com/google/subcommands"
)

// --- Import Command ---

type importCmd struct {
	user  string
	input string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import ledger entries from a JSONL file" }
func (*importCmd) Usage() string {
	return `import -u <user> -i <file.jsonl>

  Reads one entry per line, for instance:

    {"command":"deposit","date":"2025-01-02","amount":10000,"currency":"USD"}
    {"command":"buy","date":"2025-01-03","symbol":"AAPL","quantity":10,"price":150,"fees":1,"currency":"USD"}

  Lines without a user belong to -u. The whole file is validated before any
  entry is recorded. Use "-" to read from the standard input.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.StringVar(&c.input, "i", "-", "JSONL file to import")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "importing entries", func(ctx context.Context, a *app) error {
		var r io.Reader = os.Stdin
		if c.input != "-" {
			file, err := os.Open(c.input)
			if err != nil {
				return err
			}
			defer file.Close()
			r = file
		}
		n, err := importEntries(ctx, a.engine, r, c.user)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully imported %d entries for %s\n", n, c.user)
		return nil
	})
}

// importEntries validates the whole stream as a ledger of user, then records
// its entries in order.
func importEntries(ctx context.Context, engine *stocker.Engine, r io.Reader, user string) (int, error) {
	ledger, err := stocker.DecodeLedger(r, user)
	if err != nil {
		return 0, err
	}
	for i, e := range ledger.Entries() {
		if err := engine.Record(ctx, e); err != nil {
			return i, fmt.Errorf("entry %s: %w", e.EntryID(), err)
		}
	}
	return ledger.Len(), nil
}

// --- Export Command ---

type exportCmd struct {
	user   string
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the ledger as a JSONL file" }
func (*exportCmd) Usage() string {
	return `export -u <user> [-o <file.jsonl>]

  Writes every entry of the ledger in chronological order, one per line.
  The output can be imported back.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.StringVar(&c.output, "o", "-", "Output file, - for the standard output")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "exporting ledger", func(ctx context.Context, a *app) error {
		ledger, err := a.engine.Ledger(ctx, c.user)
		if err != nil {
			return err
		}
		var w io.Writer = os.Stdout
		if c.output != "-" {
			file, err := os.Create(c.output)
			if err != nil {
				return err
			}
			defer file.Close()
			w = file
		}
		return stocker.EncodeLedger(w, ledger)
	})
}
