package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradekit/feed"
	"github.com/rustyeddy/tradekit/market"
	"github.com/rustyeddy/tradekit/store"
)

func newAggregateCmd(ro *rootOptions) *cobra.Command {
	var (
		ticksPath string
		symbol    string
		timeframe string
		side      string
		startStr  string
		fromStr   string
		toStr     string
		limit     int
		out       string
		storeDir  string
	)

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate a tick CSV into fixed width periods",
		Long: `Read ticks (time,symbol,bid,ask) and build OHLCV periods per symbol.

Output goes to stdout as CSV unless --out names a .parquet or .csv file.
With --store the periods are also merged into a parquet store directory.

Examples:
  trader aggregate --ticks data/eurusd.csv --timeframe M5
  trader aggregate --ticks data/eurusd.csv --timeframe H1 --side ask --out h1.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticksPath == "" {
				return fmt.Errorf("--ticks is required")
			}

			agg := ro.cfg.Aggregation
			if timeframe != "" {
				agg.Timeframe = timeframe
			}
			if side != "" {
				agg.Side = side
			}
			if cmd.Flags().Changed("limit") {
				agg.Limit = limit
			}
			if storeDir == "" {
				storeDir = agg.StoreDir
			}

			tf, err := agg.TimeframeSeconds()
			if err != nil {
				return err
			}
			ps, err := agg.PriceSide()
			if err != nil {
				return err
			}
			if agg.Limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			start, err := parseTime("start", startStr)
			if err != nil {
				return err
			}
			from, err := parseTime("from", fromStr)
			if err != nil {
				return err
			}
			to, err := parseTime("to", toStr)
			if err != nil {
				return err
			}

			ticks, err := feed.ReadTicksFile(ticksPath, from, to)
			if err != nil {
				return fmt.Errorf("read ticks: %w", err)
			}

			var periods []market.Period
			for _, group := range groupBySymbol(ticks) {
				if symbol != "" && group[0].Symbol != symbol {
					continue
				}
				s := start
				if s.IsZero() {
					s = group[0].Time.Truncate(time.Duration(tf) * time.Second)
				}
				got := market.Aggregate(group, s, tf, ps, agg.PeriodLimit())
				ro.log.WithFields(logrus.Fields{
					"symbol":    group[0].Symbol,
					"ticks":     len(group),
					"periods":   len(got),
					"timeframe": tf,
					"side":      ps,
				}).Info("aggregated")
				periods = append(periods, got...)
			}

			if storeDir != "" {
				if err := store.NewParquetStore(storeDir).Write(periods); err != nil {
					return fmt.Errorf("write store: %w", err)
				}
				ro.log.WithField("dir", storeDir).Info("periods stored")
			}

			return writePeriods(cmd, out, periods)
		},
	}

	cmd.Flags().StringVar(&ticksPath, "ticks", "", "CSV file of ticks (time,symbol,bid,ask)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "only aggregate this symbol")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "timeframe code (M5, H1) or duration (90s); default from config")
	cmd.Flags().StringVar(&side, "side", "", "price side: bid|ask; default from config")
	cmd.Flags().StringVar(&startStr, "start", "", "first window start (default: first tick aligned to the timeframe)")
	cmd.Flags().StringVar(&fromStr, "from", "", "ignore ticks before this time")
	cmd.Flags().StringVar(&toStr, "to", "", "ignore ticks at or after this time")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum periods per symbol, 0 for no cap")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.parquet or .csv), stdout when empty")
	cmd.Flags().StringVar(&storeDir, "store", "", "parquet store directory to merge periods into")

	return cmd
}

// groupBySymbol splits ticks per symbol, keeping file order within each
// group and ordering groups by first appearance. Each group is linked on
// its own.
func groupBySymbol(ticks []market.Tick) [][]market.Tick {
	var (
		order  []string
		groups = map[string][]market.Tick{}
	)
	for _, t := range ticks {
		if _, ok := groups[t.Symbol]; !ok {
			order = append(order, t.Symbol)
		}
		groups[t.Symbol] = append(groups[t.Symbol], t)
	}

	out := make([][]market.Tick, 0, len(order))
	for _, s := range order {
		out = append(out, market.LinkTicks(groups[s]))
	}
	return out
}

func writePeriods(cmd *cobra.Command, out string, periods []market.Period) error {
	switch {
	case out == "" || out == "-":
		return store.WritePeriodsCSV(cmd.OutOrStdout(), periods)

	case strings.EqualFold(filepath.Ext(out), ".parquet"):
		return store.WritePeriods(out, periods)

	default:
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := store.WritePeriodsCSV(f, periods); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
}
