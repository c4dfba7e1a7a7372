package cell

import (
	"context"
	"time"

	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/lib/common"
	"github.com/ValentinKolb/rKV/lib/reactive"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// CellCommands represents the cell command group
	CellCommands = &cobra.Command{
		Use:   "cell",
		Short: "Read and write single reactive values",
		Long: `Bind a single key of the configured backend, hydrate it and read or write it.

Rules given with --schema, --expr, --cel or --js are checked against the persisted
record and every write. Values that fail are replaced by the --initial value.`,
		PersistentPreRunE: setupCell,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	util.SetupRuleFlags(CellCommands)

	key := "timeout"
	CellCommands.PersistentFlags().Duration(key, 10*time.Second, util.WrapString("How long to wait for hydration and pending writes"))

	// Add subcommands
	CellCommands.AddCommand(getCmd)
	CellCommands.AddCommand(setCmd)
	CellCommands.AddCommand(clearCmd)
	CellCommands.AddCommand(checkCmd)
}

// setupCell binds the command flags to viper
func setupCell(cmd *cobra.Command, _ []string) error {
	return util.BindCommandFlags(cmd)
}

// cellRunner is the part of a cell command that runs against an open registry
type cellRunner func(ctx context.Context, c *cell, args []string) (any, error)

// withRegistry opens the configured registry, runs fn and prints its result.
// The registry is flushed and the backend closed even if fn fails.
func withRegistry(fn cellRunner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		conf, err := util.GetConfig()
		if err != nil {
			return err
		}

		rules := util.GetRules()
		initial, err := rules.InitialValue()
		if err != nil {
			return err
		}
		opts, err := rules.Options()
		if err != nil {
			return err
		}

		reg, closeRegistry, err := util.OpenRegistry(conf)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := closeRegistry(); err == nil {
				err = closeErr
			}
		}()

		ctx, cancel := context.WithTimeout(cmd.Context(), viper.GetDuration("timeout"))
		defer cancel()

		result, err := fn(ctx, newCell(reg, initial, opts), args)
		if err != nil {
			return err
		}
		return util.PrintResult(cmd.OutOrStdout(), conf.Output, textOrResult(conf, result))
	}
}

// textOrResult picks what gets printed: in text mode only the value, otherwise the full result
func textOrResult(conf *common.Config, result any) any {
	if conf.Output != "text" {
		return result
	}
	if t, ok := result.(interface{ Text() string }); ok {
		return t.Text()
	}
	return result
}

// newCell creates the cell a command works on
func newCell(reg *reactive.Registry, initial *any, opts []reactive.Option[any]) *cell {
	return &cell{
		reg:     reg,
		initial: initial,
		opts:    opts,
	}
}
