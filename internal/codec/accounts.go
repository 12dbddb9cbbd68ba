package codec

import (
	"errors"
	"fmt"

	"chainmirror/internal/model"
)

// ErrUnknownAccount marks account data no known layout fits. Callers treat
// it as informational: new and foreign account types appear over time.
var ErrUnknownAccount = errors.New("unknown account type")

var (
	subjectStatusVariants   = []string{"Active", "Disputed", "Closed"}
	disputeStatusVariants   = []string{"Open", "Resolved", "Expired"}
	accountDecodeTrialOrder = []func(*payloadReader) (interface{}, error){
		decodeSubjectAccount,
		decodeDisputeAccount,
		decodeStakePoolAccount,
	}
)

// DecodeAccount decodes raw account data into one of the snapshot types
// (model.SubjectSnapshot, model.DisputeSnapshot, model.StakePoolSnapshot),
// without the account address filled in.
//
// Dispatch reads the 8-byte account discriminator first; the fixed trial
// order only runs for data whose discriminator is unrecognized, which covers
// accounts written before discriminators existed. A trial decode is accepted
// only when it consumes the data exactly.
func DecodeAccount(raw []byte) (interface{}, error) {
	if len(raw) >= 8 {
		var disc [8]byte
		copy(disc[:], raw[:8])

		switch disc {
		case AccountDiscriminator("Subject"):
			return decodeFullAccount(raw[8:], decodeSubjectAccount)
		case AccountDiscriminator("Dispute"):
			return decodeFullAccount(raw[8:], decodeDisputeAccount)
		case AccountDiscriminator("StakePool"):
			return decodeFullAccount(raw[8:], decodeStakePoolAccount)
		}
	}

	for _, decode := range accountDecodeTrialOrder {
		snapshot, err := decodeFullAccount(raw, decode)
		if err == nil {
			return snapshot, nil
		}
	}
	return nil, ErrUnknownAccount
}

func decodeFullAccount(data []byte, decode func(*payloadReader) (interface{}, error)) (interface{}, error) {
	r := newPayloadReader(data)
	snapshot, err := decode(r)
	if err != nil {
		return nil, err
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("trailing bytes after account data: %d of %d consumed", r.off, len(data))
	}
	return snapshot, nil
}

func decodeSubjectAccount(r *payloadReader) (interface{}, error) {
	var (
		snap model.SubjectSnapshot
		err  error
	)
	if snap.Creator, err = r.pubkey(); err != nil {
		return nil, err
	}
	if snap.Status, err = r.enum(subjectStatusVariants); err != nil {
		return nil, err
	}
	if snap.CurrentRound, err = r.u16(); err != nil {
		return nil, err
	}
	if snap.Metadata, err = r.str(); err != nil {
		return nil, err
	}
	if snap.CreatedAt, err = r.i64(); err != nil {
		return nil, err
	}
	return snap, nil
}

func decodeDisputeAccount(r *payloadReader) (interface{}, error) {
	var (
		snap model.DisputeSnapshot
		err  error
	)
	if snap.SubjectID, err = r.pubkey(); err != nil {
		return nil, err
	}
	if snap.Round, err = r.u16(); err != nil {
		return nil, err
	}
	if snap.Challenger, err = r.pubkey(); err != nil {
		return nil, err
	}
	stake, err := r.u64()
	if err != nil {
		return nil, err
	}
	snap.Stake = amountString(stake)
	if snap.Status, err = r.enum(disputeStatusVariants); err != nil {
		return nil, err
	}
	if snap.OpenedAt, err = r.i64(); err != nil {
		return nil, err
	}
	return snap, nil
}

func decodeStakePoolAccount(r *payloadReader) (interface{}, error) {
	var (
		snap model.StakePoolSnapshot
		err  error
	)
	if snap.Authority, err = r.pubkey(); err != nil {
		return nil, err
	}
	total, err := r.u64()
	if err != nil {
		return nil, err
	}
	snap.TotalStaked = amountString(total)
	if snap.StakerCount, err = r.u32(); err != nil {
		return nil, err
	}
	if snap.UpdatedAt, err = r.i64(); err != nil {
		return nil, err
	}
	return snap, nil
}
