package cell

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Hydrates a key and prints its value",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(ctx context.Context, c *cell, args []string) (any, error) {
			return c.Get(ctx, args[0])
		}),
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [json]",
		Short: "Writes a JSON value to a key and prints the value that was stored",
		Long: `Writes a JSON value to a key and prints the value that was stored.

If the value fails the configured rules the --initial value is stored instead.`,
		Args: cobra.ExactArgs(2),
		RunE: withRegistry(func(ctx context.Context, c *cell, args []string) (any, error) {
			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return nil, fmt.Errorf("value must be valid JSON: %w", err)
			}
			// JSON null clears the value
			if value == nil {
				return c.Set(ctx, args[0], nil)
			}
			return c.Set(ctx, args[0], &value)
		}),
	}
	clearCmd = &cobra.Command{
		Use:   "clear [key]",
		Short: "Sets a key to null",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(ctx context.Context, c *cell, args []string) (any, error) {
			return c.Set(ctx, args[0], nil)
		}),
	}
	checkCmd = &cobra.Command{
		Use:   "check [key]",
		Short: "Hydrates a key and reports whether the persisted record had to be repaired",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(ctx context.Context, c *cell, args []string) (any, error) {
			return c.Check(ctx, args[0])
		}),
	}
)
