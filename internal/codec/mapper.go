package codec

import (
	"encoding/json"
	"fmt"

	"chainmirror/internal/model"
)

// ToRecord converts one extracted event plus its transaction context into a
// persistable EventRecord. Pure function: no I/O, deterministic for a given
// (event, context) pair.
//
// The switch is exhaustive over the event union; unknown events pass through
// with their raw field map preserved in the payload column.
func ToRecord(event model.DomainEvent, signature string, slot uint64, blockTime *int64) (model.EventRecord, error) {
	rec := model.EventRecord{
		ID:        model.RecordID(signature, event.Ordinal),
		Signature: signature,
		Slot:      slot,
		BlockTime: blockTime,
		EventType: event.Name,
	}

	switch data := event.Data.(type) {
	case model.SubjectCreatedEvent:
		rec.SubjectID = data.SubjectID
		rec.Actor = data.Creator
	case model.DisputeOpenedEvent:
		rec.SubjectID = data.SubjectID
		rec.Round = roundPtr(data.Round)
		rec.Actor = data.Challenger
		rec.Amount = data.StakeAmount
	case model.VoteCastEvent:
		rec.SubjectID = data.Dispute
		rec.Round = roundPtr(data.Round)
		rec.Actor = data.Voter
		rec.Amount = data.Weight
	case model.StakeDepositedEvent:
		rec.SubjectID = data.Pool
		rec.Actor = data.Staker
		rec.Amount = data.Amount
	case model.StakeWithdrawnEvent:
		rec.SubjectID = data.Pool
		rec.Actor = data.Staker
		rec.Amount = data.Amount
	case model.DisputeResolvedEvent:
		rec.SubjectID = data.Dispute
		rec.Round = roundPtr(data.Round)
		rec.Amount = data.TotalStake
	case model.RewardClaimedEvent:
		rec.SubjectID = data.Pool
		rec.Actor = data.Claimer
		rec.Amount = data.Amount
	case model.UnknownEvent:
		// No promoted columns; the payload carries everything.
	default:
		return model.EventRecord{}, fmt.Errorf("unhandled event kind %T", event.Data)
	}

	payload, err := json.Marshal(event.Data)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("marshal payload for %s: %w", rec.ID, err)
	}
	rec.Payload = payload

	return rec, nil
}

// ToRecords maps every event of one transaction into records, in order.
func ToRecords(events []model.DomainEvent, tx model.TransactionLogBatch) ([]model.EventRecord, error) {
	records := make([]model.EventRecord, 0, len(events))
	for _, ev := range events {
		rec, err := ToRecord(ev, tx.Signature, tx.Slot, tx.BlockTime)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func roundPtr(round uint16) *uint16 {
	return &round
}
