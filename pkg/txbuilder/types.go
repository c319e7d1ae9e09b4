package txbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Action enumerates a TransactionStep's closed set of variants.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionDeposit  Action = "deposit"
	ActionWithdraw Action = "withdraw"
	ActionBorrow   Action = "borrow"
	ActionRepay    Action = "repay"
	ActionStake    Action = "stake"
	ActionUnstake  Action = "unstake"
	ActionWrap     Action = "wrap"
	ActionUnwrap   Action = "unwrap"
	ActionSwap     Action = "swap"
	ActionClaim    Action = "claim"
)

// StepToken names a token and amount attached to a step, for dependency
// analysis in pkg/batch and display in the UI.
type StepToken struct {
	Address common.Address
	Symbol  string
	Amount  *big.Int
}

// ApprovalStatus is attached by pkg/approval; nil until that pass runs.
type ApprovalStatus struct {
	CurrentAllowance     *big.Int
	RequiredAmount       *big.Int
	IsApproved           bool
	IsPartiallyApproved  bool
	CanSkip              bool
}

// BatchInfo is attached by pkg/batch; nil until that pass runs.
type BatchInfo struct {
	BatchID       string
	IndexInBatch  int
	TotalInBatch  int
	BatchedWith   []string
}

// TransactionStep is one low-level call in an ordered plan.
type TransactionStep struct {
	ID             string
	Action         Action
	Protocol       string
	ChainID        int64
	Description    string
	To             common.Address
	Calldata       []byte
	Value          *big.Int
	TokenIn        *StepToken
	TokenOut       *StepToken
	EstimatedGas   uint64
	SourceBlockID  string
	ApprovalStatus *ApprovalStatus
	BatchInfo      *BatchInfo
}

// TransactionPlan is the builder's final output.
type TransactionPlan struct {
	ID                   string
	ChainID              int64
	FromAddress          common.Address
	Steps                []*TransactionStep
	TotalSteps           int
	EstimatedTotalGas    uint64
	EstimatedTotalGasUSD float64
	StrategyID           string
	CreatedAtMs          int64
	ExpiresAtMs          int64
}

// PlanExpiryWindowMs is the spec's 5-minute UX heuristic; no on-chain
// timelock enforces it (Open Question 3).
const PlanExpiryWindowMs = 5 * 60 * 1000
