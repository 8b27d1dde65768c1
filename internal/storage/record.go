package storage

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Kind classifies what a submitted transaction does.
type Kind string

const (
	KindSwap     Kind = "swap"
	KindApproval Kind = "approval"
	KindWrap     Kind = "wrap"
)

// Status tracks a record through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record is one submitted transaction with its human-readable summary.
// Detail fields are filled per kind; the watcher completes the finalization
// fields once a receipt lands.
type Record struct {
	ID      string         `json:"id"`
	ChainID uint64         `json:"chainId"`
	Hash    common.Hash    `json:"hash"`
	From    common.Address `json:"from"`
	Kind    Kind           `json:"kind"`
	Summary string         `json:"summary"`

	// swap detail, raw amounts in base units
	InputSymbol  string `json:"inputSymbol,omitempty"`
	OutputSymbol string `json:"outputSymbol,omitempty"`
	InputRaw     string `json:"inputRaw,omitempty"`
	OutputRaw    string `json:"outputRaw,omitempty"`

	// approval detail
	Token   common.Address `json:"token"`
	Spender common.Address `json:"spender"`

	Status      Status    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
	FinalizedAt time.Time `json:"finalizedAt"`
	BlockNumber uint64    `json:"blockNumber,omitempty"`
	GasUsed     uint64    `json:"gasUsed,omitempty"`

	// realized amounts decoded from swap events at confirmation time
	RealizedInputRaw  string `json:"realizedInputRaw,omitempty"`
	RealizedOutputRaw string `json:"realizedOutputRaw,omitempty"`
}

// NewRecord stamps a fresh pending record for a submitted transaction.
func NewRecord(kind Kind, chainID uint64, hash common.Hash, from common.Address, summary string) Record {
	return Record{
		ID:          uuid.NewString(),
		ChainID:     chainID,
		Hash:        hash,
		From:        from,
		Kind:        kind,
		Summary:     summary,
		Status:      StatusPending,
		SubmittedAt: time.Now().UTC(),
	}
}
