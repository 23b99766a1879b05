// Package timeseries specifies the time-series store contract used by the
// health loop, quota loop, and node-score endpoint, with one SQLite-backed
// implementation for local development. A production deployment would point
// at a Graphite/ClickHouse-style backend implementing the same interface;
// that backend is out of scope, per spec §1 ("the time-series store
// [specified] as interface contracts").
package timeseries

// Store is the read/write contract every component depends on. Paths are
// the dot-separated Graphite-style keys described in the telemetry wire
// format (e.g. "<env>.<host>.<uuid>.heartbeat").
type Store interface {
	// Record appends one datapoint at path with the given unix-second
	// timestamp, matching the single-writer append semantics of the
	// Graphite-style telemetry ingest path.
	Record(path string, value float64, unixTs int64) error

	// LatestTimestamp returns the unix-second timestamp of the most recent
	// datapoint at the exact path, or ok=false if none exists.
	LatestTimestamp(path string) (ts int64, ok bool, err error)

	// LatestValue returns the most recent value at the exact path, or
	// ok=false if none exists.
	LatestValue(path string) (value float64, ok bool, err error)

	// SumRange sums values recorded in [sinceUnixTs, untilUnixTs) whose path
	// matches pattern, where "*" is a SQL LIKE-style wildcard, mirroring the
	// quota loop's "<env>.*.<conn_id>.uplink" query over the connection's
	// current 24h quota window.
	SumRange(pattern string, sinceUnixTs, untilUnixTs int64) (float64, error)
}
