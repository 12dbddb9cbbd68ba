package model

import "strings"

// TransactionLogBatch is one confirmed transaction's worth of log output,
// as delivered by a webhook push or fetched during a backfill crawl.
type TransactionLogBatch struct {
	Signature string   `json:"signature"`
	Slot      uint64   `json:"slot"`
	BlockTime *int64   `json:"block_time"`
	LogLines  []string `json:"log_lines"`
}

// TouchesProgram reports whether any log line mentions the program address.
// An empty address never matches, so an unconfigured filter drops everything
// instead of ingesting the whole firehose.
func (t TransactionLogBatch) TouchesProgram(address string) bool {
	if address == "" {
		return false
	}
	for _, line := range t.LogLines {
		if strings.Contains(line, address) {
			return true
		}
	}
	return false
}
