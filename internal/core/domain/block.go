package domain

// MaxIntervalMs is the sanity ceiling for a derived inter-block interval.
// Gaps above this are assumed to be clock skew or a backfill seam and are
// not recorded.
const MaxIntervalMs = 60_000

// Block represents one block observed on the feed.
// Immutable after construction, except IntervalMs which is attached once
// the predecessor's timestamp is known.
type Block struct {
	Number     uint64 `json:"number"`
	Timestamp  int64  `json:"timestamp"` // milliseconds since epoch
	TxCount    int    `json:"tx_count"`
	IntervalMs int64  `json:"interval_ms,omitempty"` // 0 = unknown
}

// DeriveInterval computes the inter-block interval between a predecessor's
// timestamp and a block's timestamp. Returns 0 when the gap is non-positive
// or above the sanity ceiling.
func DeriveInterval(prevTimestamp, timestamp int64) int64 {
	gap := timestamp - prevTimestamp
	if gap <= 0 || gap >= MaxIntervalMs {
		return 0
	}
	return gap
}
