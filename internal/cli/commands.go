package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"packvault-autosell-api/internal/model"

	"github.com/spf13/cobra"
)

func newPreviewCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show what a batch run would sell now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, s *Services) error {
				p, err := s.AutoSell.Preview(ctx, opts.User)
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), p, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ITEM\tNAME\tRARITY\tESTIMATE")
					for _, c := range p.Candidates {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.Item.ID, c.Item.Definition.Name, c.Item.Definition.Rarity, c.EstimatedPrice)
					}
					tw.Flush()
					writeSkipped(w, p.Skipped)
					fmt.Fprintf(w, "Estimated total: %d credits (pricing %s, advisory)\n", p.TotalEstimatedCredits, p.PricingVersion)
				})
			})
		},
	}
}

func newProcessCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Run a batch auto-sell for the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, s *Services) error {
				stats, err := s.AutoSell.ProcessBatch(ctx, opts.User)
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), stats, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ITEM\tSTATUS\tPRICE\tREASON")
					for _, r := range stats.Results {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ItemID, r.Status, r.Price, r.Reason)
					}
					tw.Flush()
					fmt.Fprintf(w, "Run %s: processed=%d sold=%d skipped=%d errors=%d remaining=%d credits=%d\n",
						stats.RunID, stats.TotalProcessed, stats.SuccessfulSales, stats.SkippedItems,
						stats.Errors, stats.Remaining, stats.TotalCredits)
				})
			})
		},
	}
}

func newSellCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sell <item-id>",
		Short: "Sell one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, s *Services) error {
				res, err := s.AutoSell.SellSingle(ctx, opts.User, args[0])
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
					fmt.Fprintf(w, "Sold %s (%s) for %d credits\n", res.ItemID, res.ItemName, res.CreditsReceived)
				})
			})
		},
	}
}

func newProtectCommand(opts *RootOptions) *cobra.Command {
	var unprotect bool
	var reason string

	cmd := &cobra.Command{
		Use:   "protect <item-id>",
		Short: "Protect an item from auto-sell (or clear protection with --off)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, s *Services) error {
				state, err := s.AutoSell.ToggleProtection(ctx, opts.User, args[0], !unprotect, reason)
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), state, func(w io.Writer) {
					verb := "unchanged"
					if state.Changed {
						verb = "updated"
					}
					fmt.Fprintf(w, "Item %s protected=%t (%s)\n", state.ItemID, state.Protected, verb)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&unprotect, "off", false, "clear protection instead of setting it")
	cmd.Flags().StringVar(&reason, "reason", "", "why the item is protected")
	return cmd
}

func newStatsCommand(opts *RootOptions) *cobra.Command {
	var days int
	var history bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show auto-sell activity over a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, s *Services) error {
				stats, err := s.AutoSell.StatsForPeriod(ctx, opts.User, days, history)
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), stats, func(w io.Writer) {
					fmt.Fprintf(w, "Last %d days: runs=%d processed=%d sold=%d (single=%d batch=%d) skipped=%d errors=%d credits=%d\n",
						stats.Days, stats.Runs, stats.TotalProcessed, stats.SuccessfulSales, stats.SingleSales,
						stats.BatchSales, stats.SkippedItems, stats.Errors, stats.TotalCredits)
					for _, rec := range stats.History {
						fmt.Fprintf(w, "  %s  %-6s %s %d\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Mode, rec.ItemName, rec.Credits)
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "look-back window in days (1-365)")
	cmd.Flags().BoolVar(&history, "history", false, "include recent sale records")
	return cmd
}

func newGrantCommand(opts *RootOptions) *cobra.Command {
	var def model.ItemDefinition
	var rarity string
	var protected bool

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Add an item to the user's inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := model.ParseRarity(rarity)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --rarity", err)
			}
			def.Rarity = r

			return opts.withServices(cmd, func(ctx context.Context, s *Services) error {
				item, err := s.Inventory.GrantItem(ctx, opts.User, def, protected, "")
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), item, func(w io.Writer) {
					fmt.Fprintf(w, "Granted %s (%s, %s, base %d)\n", item.ID, item.Definition.Name, item.Definition.Rarity, item.Definition.BaseValue)
				})
			})
		},
	}
	cmd.Flags().StringVar(&def.ID, "definition", "", "item definition ID (required)")
	cmd.Flags().StringVar(&def.Name, "name", "", "item name (required)")
	cmd.Flags().StringVar(&rarity, "rarity", "common", "item rarity")
	cmd.Flags().Int64Var(&def.BaseValue, "value", 0, "base value in credits")
	cmd.Flags().BoolVar(&protected, "protected", false, "grant the item already protected")
	_ = cmd.MarkFlagRequired("definition")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newInventoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "List unsold items and the credit balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, s *Services) error {
				view, err := s.Inventory.GetInventory(ctx, opts.User)
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), view, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ITEM\tNAME\tRARITY\tVALUE\tPROTECTED")
					for _, it := range view.Items {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", it.ID, it.Definition.Name, it.Definition.Rarity, it.Definition.BaseValue, it.Protected)
					}
					tw.Flush()
					fmt.Fprintf(w, "Balance: %d credits\n", view.Credits)
				})
			})
		},
	}
}

func writeSkipped(w io.Writer, skipped []model.SkippedItem) {
	for _, s := range skipped {
		fmt.Fprintf(w, "  skipped %s (%s): %s\n", s.ItemID, s.ItemName, s.Reason)
	}
}
