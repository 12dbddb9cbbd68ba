package model

// EventData is the closed union of decoded program event payloads. Every
// known event kind has a concrete struct below; UnknownEvent is the explicit
// escape hatch for discriminators this build does not recognize.
type EventData interface {
	// EventName returns the event's declared type name.
	EventName() string
}

// DomainEvent is one parsed occurrence inside a transaction's logs. Ordinal
// is the position among events extracted from the same transaction, not the
// raw log line index.
type DomainEvent struct {
	Name    string
	Ordinal int
	Data    EventData
}

// SubjectCreatedEvent announces a new arbitration subject.
type SubjectCreatedEvent struct {
	SubjectID string `json:"subject_id"`
	Creator   string `json:"creator"`
	Timestamp int64  `json:"timestamp"`
}

func (SubjectCreatedEvent) EventName() string { return "SubjectCreated" }

// DisputeOpenedEvent records a challenger opening a dispute round.
type DisputeOpenedEvent struct {
	SubjectID   string `json:"subject_id"`
	Dispute     string `json:"dispute"`
	Round       uint16 `json:"round"`
	Challenger  string `json:"challenger"`
	StakeAmount string `json:"stake_amount"`
	Timestamp   int64  `json:"timestamp"`
}

func (DisputeOpenedEvent) EventName() string { return "DisputeOpened" }

// VoteCastEvent records one weighted vote inside a dispute round.
type VoteCastEvent struct {
	Dispute   string `json:"dispute"`
	Round     uint16 `json:"round"`
	Voter     string `json:"voter"`
	Choice    string `json:"choice"`
	Weight    string `json:"weight"`
	Timestamp int64  `json:"timestamp"`
}

func (VoteCastEvent) EventName() string { return "VoteCast" }

// StakeDepositedEvent records a deposit into a stake pool.
type StakeDepositedEvent struct {
	Pool      string `json:"pool"`
	Staker    string `json:"staker"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

func (StakeDepositedEvent) EventName() string { return "StakeDeposited" }

// StakeWithdrawnEvent records a withdrawal from a stake pool.
type StakeWithdrawnEvent struct {
	Pool      string `json:"pool"`
	Staker    string `json:"staker"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

func (StakeWithdrawnEvent) EventName() string { return "StakeWithdrawn" }

// DisputeResolvedEvent records the terminal outcome of a dispute round.
type DisputeResolvedEvent struct {
	Dispute    string `json:"dispute"`
	Round      uint16 `json:"round"`
	Outcome    string `json:"outcome"`
	TotalStake string `json:"total_stake"`
	Timestamp  int64  `json:"timestamp"`
}

func (DisputeResolvedEvent) EventName() string { return "DisputeResolved" }

// RewardClaimedEvent records a staker claiming accrued rewards.
type RewardClaimedEvent struct {
	Pool      string `json:"pool"`
	Claimer   string `json:"claimer"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

func (RewardClaimedEvent) EventName() string { return "RewardClaimed" }

// UnknownEvent preserves a structured event this build cannot decode. The
// discriminator and raw payload survive verbatim so newer program versions
// stay queryable after the fact.
type UnknownEvent struct {
	Discriminator string `json:"discriminator"`
	Data          string `json:"data"`
}

func (UnknownEvent) EventName() string { return "Unknown" }
