package journal

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(ticket, position_id, symbol, direction, volume, open_price, close_price, open_time, close_time, gross_profit, net_profit, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Ticket, o.PositionID, o.Symbol, o.Direction, o.Volume, o.OpenPrice,
		o.ClosePrice, o.OpenTime, o.CloseTime, o.GrossProfit, o.NetProfit, o.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	// SQLite has no NaN; an unset margin level is stored as NULL
	level := sql.NullFloat64{Float64: e.MarginLevel, Valid: !math.IsNaN(e.MarginLevel)}

	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, used_margin, free_margin, margin_level)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Balance, e.Equity, e.UsedMargin, e.FreeMargin, level,
	)
	return err
}

// GetOrder returns the first record written for a ticket.
func (j *SQLite) GetOrder(ticket int64) (OrderRecord, error) {
	row := j.db.QueryRow(`
		SELECT ticket, position_id, symbol, direction, volume, open_price, close_price, open_time, close_time, gross_profit, net_profit, reason
		FROM orders
		WHERE ticket = ?
		ORDER BY rowid
		LIMIT 1`, ticket)

	rec, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return OrderRecord{}, fmt.Errorf("order %d not found", ticket)
	}
	return rec, err
}

// ListOrdersClosedBetween returns orders whose close_time is within [start, end).
func (j *SQLite) ListOrdersClosedBetween(start, end time.Time) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT ticket, position_id, symbol, direction, volume, open_price, close_price, open_time, close_time, gross_profit, net_profit, reason
		FROM orders
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns snapshots within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, equity, used_margin, free_margin, margin_level
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var (
			rec   EquitySnapshot
			level sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.Time,
			&rec.Balance,
			&rec.Equity,
			&rec.UsedMargin,
			&rec.FreeMargin,
			&level,
		); err != nil {
			return nil, err
		}
		rec.MarginLevel = math.NaN()
		if level.Valid {
			rec.MarginLevel = level.Float64
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (OrderRecord, error) {
	var rec OrderRecord
	err := s.Scan(
		&rec.Ticket,
		&rec.PositionID,
		&rec.Symbol,
		&rec.Direction,
		&rec.Volume,
		&rec.OpenPrice,
		&rec.ClosePrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.GrossProfit,
		&rec.NetProfit,
		&rec.Reason,
	)
	return rec, err
}
