package model

// Snapshot rows mirror the full current on-chain state of an account. They
// are overwritten wholesale on every sync; only EventRecord keeps history.

// SubjectSnapshot mirrors a subject account.
type SubjectSnapshot struct {
	Address      string `json:"address"`
	Creator      string `json:"creator"`
	Status       string `json:"status"`
	CurrentRound uint16 `json:"current_round"`
	Metadata     string `json:"metadata"`
	CreatedAt    int64  `json:"created_at"`
}

// DisputeSnapshot mirrors a dispute account. The same dispute address is
// reused across rounds, so the natural key is address plus round.
type DisputeSnapshot struct {
	Address    string `json:"address"`
	SubjectID  string `json:"subject_id"`
	Round      uint16 `json:"round"`
	Challenger string `json:"challenger"`
	Stake      string `json:"stake"`
	Status     string `json:"status"`
	OpenedAt   int64  `json:"opened_at"`
}

// StakePoolSnapshot mirrors a stake pool account.
type StakePoolSnapshot struct {
	Address     string `json:"address"`
	Authority   string `json:"authority"`
	TotalStaked string `json:"total_staked"`
	StakerCount uint32 `json:"staker_count"`
	UpdatedAt   int64  `json:"updated_at"`
}
