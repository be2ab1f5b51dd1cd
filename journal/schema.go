package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	ticket INTEGER NOT NULL,
	position_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	volume REAL NOT NULL,
	open_price REAL NOT NULL,
	close_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	gross_profit REAL NOT NULL,
	net_profit REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_close_time ON orders(close_time);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	used_margin REAL NOT NULL,
	free_margin REAL NOT NULL,
	margin_level REAL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
