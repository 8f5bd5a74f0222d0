package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	created DATETIME NOT NULL,
	instrument TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	initial_capital REAL NOT NULL,
	final_equity REAL NOT NULL,
	trades INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	return_pct REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	config_json TEXT NOT NULL,
	metrics_json TEXT NOT NULL,
	orders_json TEXT NOT NULL,
	cross_asset_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	trade_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	units REAL NOT NULL,
	entry_raw REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_raw REAL NOT NULL,
	exit_price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	entry_bar INTEGER NOT NULL,
	exit_bar INTEGER NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	commission REAL NOT NULL,
	reason TEXT NOT NULL,
	realized_rr REAL NOT NULL,
	grade TEXT NOT NULL,
	confidence INTEGER NOT NULL,
	score INTEGER NOT NULL,
	sweep_level REAL NOT NULL,
	partial_tp INTEGER NOT NULL,
	mfe_r REAL NOT NULL,
	mae_r REAL NOT NULL,
	stop_hunt INTEGER NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	bar INTEGER NOT NULL,
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	unrealized REAL NOT NULL,
	equity REAL NOT NULL,
	open INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS skips (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	reason TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (run_id, reason)
);

CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, bar);
CREATE INDEX IF NOT EXISTS idx_trades_close ON trades(close_time);
`
