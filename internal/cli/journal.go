package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradekit/journal"
)

func newJournalCmd(ro *rootOptions) *cobra.Command {
	var dbPath string

	open := func() (*journal.SQLite, error) {
		path := dbPath
		if path == "" {
			path = ro.cfg.Journal.DBPath
		}
		if path == "" {
			return nil, fmt.Errorf("--db is required")
		}
		j, err := journal.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the SQLite order journal",
		Long: `Print journaled orders as Org-mode entries.

Examples:
  trader journal order 12
  trader journal day 2024-01-15
  trader journal equity 2024-01-15`,
	}
	cmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "path to SQLite journal DB (default from config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "order <ticket>",
		Short: "Show a closed order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticket, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad ticket %q", args[0])
			}
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			rec, err := j.GetOrder(ticket)
			if err != nil {
				return fmt.Errorf("get order: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatOrderOrg(rec))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "List orders closed on a UTC day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dayBounds(args[0])
			if err != nil {
				return err
			}
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.ListOrdersClosedBetween(start, end)
			if err != nil {
				return fmt.Errorf("query orders: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatOrdersOrg(recs))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "equity <YYYY-MM-DD>",
		Short: "List equity snapshots of a UTC day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dayBounds(args[0])
			if err != nil {
				return err
			}
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			snaps, err := j.ListEquityBetween(start, end)
			if err != nil {
				return fmt.Errorf("query equity: %w", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "time,balance,equity,used_margin,free_margin,margin_level")
			for _, e := range snaps {
				fmt.Fprintf(w, "%s,%.2f,%.2f,%.2f,%.2f,%s\n",
					e.Time.UTC().Format(time.RFC3339Nano), e.Balance, e.Equity,
					e.UsedMargin, e.FreeMargin, marginLevel(e.MarginLevel))
			}
			return nil
		},
	})

	return cmd
}

func dayBounds(day string) (time.Time, time.Time, error) {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date: %w", err)
	}
	return t, t.Add(24 * time.Hour), nil
}
