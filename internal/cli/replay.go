package cli

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradekit/broker"
	"github.com/rustyeddy/tradekit/broker/sim"
	"github.com/rustyeddy/tradekit/config"
	"github.com/rustyeddy/tradekit/feed"
	"github.com/rustyeddy/tradekit/journal"
	"github.com/rustyeddy/tradekit/replay"
)

func newReplayCmd(ro *rootOptions) *cobra.Command {
	var (
		ticksPath       string
		fromStr         string
		toStr           string
		dbPath          string
		tickThenEvent   bool
		closeEnd        bool
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a tick CSV with scripted events into a simulated account",
		Long: `Replay ticks and events (time,symbol,bid,ask[,event,args...]) through
the simulated account. Closed orders and equity snapshots go to the journal.

Examples:
  trader replay --ticks data/eurusd.csv
  trader replay --ticks data/eurusd.csv --db ./replay.sqlite --close-end=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticksPath == "" {
				return fmt.Errorf("--ticks is required")
			}
			from, err := parseTime("from", fromStr)
			if err != nil {
				return err
			}
			to, err := parseTime("to", toStr)
			if err != nil {
				return err
			}

			jc := ro.cfg.Journal.Sink()
			if dbPath != "" {
				jc = journal.Config{Type: "sqlite", DBPath: dbPath}
			}
			j, err := journal.Open(jc)
			if err != nil {
				return fmt.Errorf("create journal: %w", err)
			}
			defer j.Close()

			acct, err := newSimAccount(ro.cfg, j, ro.log)
			if err != nil {
				return err
			}
			acct.SetListener(logListener{log: ro.log})

			r, err := feed.Open(ticksPath, from, to)
			if err != nil {
				return err
			}
			defer r.Close()

			ro.log.WithField("ticks", ticksPath).Info("replaying")
			s, err := replay.Run(cmd.Context(), r, acct, replay.Options{
				TickThenEvent:   tickThenEvent,
				CloseAtEnd:      closeEnd,
				ContinueOnError: continueOnError,
				Logger:          ro.log,
			})
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Replay complete\n")
			fmt.Fprintf(w, "  Rows:         %d\n", s.Rows)
			fmt.Fprintf(w, "  Events:       %d (%d failed)\n", s.Events, s.FailedEvents)
			fmt.Fprintf(w, "  Orders:       %d\n", s.Orders)
			fmt.Fprintf(w, "  Balance:      %.2f %s\n", s.Balance, ro.cfg.Account.Currency)
			fmt.Fprintf(w, "  Equity:       %.2f\n", s.Equity)
			fmt.Fprintf(w, "  Free margin:  %.2f\n", s.FreeMargin)
			fmt.Fprintf(w, "  Margin level: %s\n", marginLevel(s.MarginLevel))
			return nil
		},
	}

	cmd.Flags().StringVar(&ticksPath, "ticks", "", "CSV file of ticks and events")
	cmd.Flags().StringVar(&fromStr, "from", "", "skip rows before this time")
	cmd.Flags().StringVar(&toStr, "to", "", "skip rows at or after this time")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite journal path (overrides config)")
	cmd.Flags().BoolVar(&tickThenEvent, "tick-then-event", true, "apply a row's tick before its event")
	cmd.Flags().BoolVar(&closeEnd, "close-end", true, "close all open orders at end")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "log failed events and keep going")

	return cmd
}

func newSimAccount(cfg *config.Config, j journal.Journal, log logrus.FieldLogger) (*sim.Account, error) {
	return sim.New(broker.AccountInfo{
		ID:          cfg.Account.ID,
		CurrencyISO: cfg.Account.Currency,
	}, sim.Options{
		Balance:           cfg.Account.Balance,
		Symbols:           cfg.Symbols,
		CommissionPerUnit: cfg.Account.CommissionPerUnit,
		StopOutLevel:      cfg.Account.StopOutLevel,
		HistoryLimit:      cfg.Account.HistoryLimit,
		Journal:           j,
		Logger:            log,
	})
}

// logListener reports automatic fills and closes.
type logListener struct {
	log logrus.FieldLogger
}

func (l logListener) OnOrderUpdate(o broker.Order, reason string) {
	l.log.WithFields(logrus.Fields{
		"ticket": o.Ticket,
		"symbol": o.Symbol,
		"status": o.Status,
		"reason": reason,
	}).Debug("order update")
}

func marginLevel(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v)
}
