package model

import (
	"encoding/json"
	"fmt"
)

// EventRecord is the normalized, idempotency-keyed row persisted for every
// extracted event. ID is "{signature}:{ordinal}" and uniquely determines the
// event across redeliveries; upserting the same ID replaces the row.
type EventRecord struct {
	ID        string          `json:"id"`
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *int64          `json:"block_time"`
	EventType string          `json:"event_type"`
	SubjectID string          `json:"subject_id"`
	Round     *uint16         `json:"round"`
	Actor     string          `json:"actor"`
	Amount    string          `json:"amount"`
	Payload   json.RawMessage `json:"payload"`
}

// RecordID builds the idempotency key for a signature and ordinal.
func RecordID(signature string, ordinal int) string {
	return fmt.Sprintf("%s:%d", signature, ordinal)
}
