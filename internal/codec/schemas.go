package codec

import (
	"strconv"

	"chainmirror/internal/model"
)

// Wire field order below follows the program's published event schema. Field
// names translate from the wire's snake_case to record fields through the
// struct JSON tags in internal/model.

var (
	voteChoiceVariants     = []string{"Uphold", "Overturn", "Abstain"}
	disputeOutcomeVariants = []string{"Upheld", "Overturned", "Expired"}
)

// u64 amounts ride as decimal strings end to end; the store's NUMERIC
// columns absorb the full range without a float round trip.
func amountString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func decodeSubjectCreated(r *payloadReader) (model.EventData, error) {
	var (
		ev  model.SubjectCreatedEvent
		err error
	)
	if ev.SubjectID, err = r.pubkey(); err != nil {
		return nil, err
	}
	if ev.Creator, err = r.pubkey(); err != nil {
		return nil, err
	}
	if ev.Timestamp, err = r.i64(); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeDisputeOpened(r *payloadReader) (model.EventData, error) {
	var (
		ev  model.DisputeOpenedEvent
		err error
	)
	if ev.SubjectID, err = r.pubkey(); err != nil {
		return nil, err
	}
	if ev.Dispute, err = r.pubkey(); err != nil {
		return nil, err
	}
	if ev.Round, err = r.u16(); err != nil {
		return nil, err
	}
	if ev.Challenger, err = r.pubkey(); err != nil {
		return nil, err
	}
	stake, err := r.u64()
	if err != nil {
		return nil, err
	}
	ev.StakeAmount = amountString(stake)
	if ev.Timestamp, err = r.i64(); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeVoteCast(r *payloadReader) (model.EventData, error) {
	var (
		ev  model.VoteCastEvent
		err error
	)
	if ev.Dispute, err = r.pubkey(); err != nil {
		return nil, err
	}
	if ev.Round, err = r.u16(); err != nil {
		return nil, err
	}
	if ev.Voter, err = r.pubkey(); err != nil {
		return nil, err
	}
	if ev.Choice, err = r.enum(voteChoiceVariants); err != nil {
		return nil, err
	}
	weight, err := r.u64()
	if err != nil {
		return nil, err
	}
	ev.Weight = amountString(weight)
	if ev.Timestamp, err = r.i64(); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeStakeDeposited(r *payloadReader) (model.EventData, error) {
	pool, staker, amount, ts, err := decodeStakeMovement(r)
	if err != nil {
		return nil, err
	}
	return model.StakeDepositedEvent{Pool: pool, Staker: staker, Amount: amount, Timestamp: ts}, nil
}

func decodeStakeWithdrawn(r *payloadReader) (model.EventData, error) {
	pool, staker, amount, ts, err := decodeStakeMovement(r)
	if err != nil {
		return nil, err
	}
	return model.StakeWithdrawnEvent{Pool: pool, Staker: staker, Amount: amount, Timestamp: ts}, nil
}

// StakeDeposited and StakeWithdrawn share one wire layout.
func decodeStakeMovement(r *payloadReader) (pool, staker, amount string, ts int64, err error) {
	if pool, err = r.pubkey(); err != nil {
		return
	}
	if staker, err = r.pubkey(); err != nil {
		return
	}
	var v uint64
	if v, err = r.u64(); err != nil {
		return
	}
	amount = amountString(v)
	ts, err = r.i64()
	return
}

func decodeDisputeResolved(r *payloadReader) (model.EventData, error) {
	var (
		ev  model.DisputeResolvedEvent
		err error
	)
	if ev.Dispute, err = r.pubkey(); err != nil {
		return nil, err
	}
	if ev.Round, err = r.u16(); err != nil {
		return nil, err
	}
	if ev.Outcome, err = r.enum(disputeOutcomeVariants); err != nil {
		return nil, err
	}
	total, err := r.u64()
	if err != nil {
		return nil, err
	}
	ev.TotalStake = amountString(total)
	if ev.Timestamp, err = r.i64(); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeRewardClaimed(r *payloadReader) (model.EventData, error) {
	var (
		ev  model.RewardClaimedEvent
		err error
	)
	if ev.Pool, err = r.pubkey(); err != nil {
		return nil, err
	}
	if ev.Claimer, err = r.pubkey(); err != nil {
		return nil, err
	}
	amount, err := r.u64()
	if err != nil {
		return nil, err
	}
	ev.Amount = amountString(amount)
	if ev.Timestamp, err = r.i64(); err != nil {
		return nil, err
	}
	return ev, nil
}
