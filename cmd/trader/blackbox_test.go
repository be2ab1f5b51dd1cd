//go:build blackbox

package main

import (
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var traderBin string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "trader-blackbox-*")
	if err != nil {
		panic(err)
	}

	traderBin = filepath.Join(tmp, "trader")

	// Build the binary once for all tests.
	cmd := exec.Command("go", "build", "-o", traderBin, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic(err)
	}

	code := m.Run()
	os.RemoveAll(tmp)
	os.Exit(code)
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	cmd := exec.Command(traderBin, args...)
	cmd.Dir = t.TempDir()
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "args: %v\noutput:\n%s", args, out)
	return string(out)
}

func writeTicksCSV(t *testing.T, path, symbol string, n int, priceFn func(i int) (bid, ask float64)) {
	t.Helper()

	var b strings.Builder
	b.WriteString("time,symbol,bid,ask\n")
	start := time.Date(2026, 1, 21, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		bid, ask := priceFn(i)
		fmt.Fprintf(&b, "%s,%s,%.6f,%.6f\n",
			start.Add(time.Duration(i)*time.Second).Format(time.RFC3339Nano), symbol, bid, ask)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func TestVersion(t *testing.T) {
	assert.Contains(t, run(t, "version"), "trader (")
}

func TestReplayWritesEquity(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "trader.sqlite")
	ticksPath := filepath.Join(dir, "ticks.csv")

	writeTicksCSV(t, ticksPath, "EUR_USD", 120, func(i int) (bid, ask float64) {
		mid := 1.1000 + float64(i)*0.00001
		return mid - 0.0001, mid + 0.0001
	})

	out := run(t, "replay", "--ticks", ticksPath, "--db", dbPath)
	assert.Contains(t, out, "Replay complete")
	assert.Contains(t, out, "Rows:         120")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM equity`).Scan(&n))
	// one per tick plus the close at end
	assert.Equal(t, 121, n)
}

func TestAggregateMinutes(t *testing.T) {
	dir := t.TempDir()
	ticksPath := filepath.Join(dir, "ticks.csv")

	writeTicksCSV(t, ticksPath, "EUR_USD", 180, func(i int) (bid, ask float64) {
		return 1.1, 1.1002
	})

	out := run(t, "aggregate", "--ticks", ticksPath, "--timeframe", "M1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// the text logger writes to stderr, which CombinedOutput merges in
	var periods int
	for _, l := range lines {
		if strings.HasPrefix(l, "2026-01-21T08:0") {
			periods++
		}
	}
	assert.Equal(t, 3, periods)
}
