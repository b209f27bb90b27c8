package cmd

import (
	"flag"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

var currencies = predict.Set{"USD", "EUR", "GBP", "JPY", "CHF", "HKD", "CAD", "AUD", "CNY", "SGD"}

// Completion returns the shell completion of the commands registered in c,
// with top the flags accepted before the command name.
func Completion(c *subcommands.Commander, top *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: predictors(top),
	}
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		cmd.SetFlags(fs)
		root.Sub[cmd.Name()] = &complete.Command{Flags: predictors(fs)}
	})
	return root
}

func predictors(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	fs.VisitAll(func(f *flag.Flag) {
		switch f.Name {
		case "c":
			flags[f.Name] = currencies
		case "i", "o":
			flags[f.Name] = predict.Files("*.jsonl")
		case "config":
			flags[f.Name] = predict.Files("*.toml")
		default:
			flags[f.Name] = predict.Set{}
		}
	})
	return flags
}
