// Package approval batches on-chain allowance reads and marks approve
// steps that can be skipped because the spender already holds sufficient
// allowance — directly grounded on the teacher's ensureApproval in
// blackhole.go, which checks currentAllowance.Cmp(requiredAmount) >= 0
// before deciding whether to send an approve transaction at all.
package approval

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/blackhole-labs/stratplan/pkg/chainio"
	"github.com/blackhole-labs/stratplan/pkg/registry"
	"github.com/blackhole-labs/stratplan/pkg/txbuilder"
)

const allowanceABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var allowanceABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(allowanceABIJSON))
	if err != nil {
		panic("approval: invalid embedded ABI: " + err.Error())
	}
	allowanceABI = parsed
}

// GasSavingsPerSkippedApprove is the spec's flat per-step estimate.
const GasSavingsPerSkippedApprove = 46_000

// Request is one allowance read to perform, extracted from a plan.
type Request struct {
	StepID         string
	Token          common.Address
	Spender        common.Address
	RequiredAmount *big.Int
}

// Status is the classification result for one Request.
type Status struct {
	CurrentAllowance    *big.Int
	RequiredAmount      *big.Int
	IsApproved          bool
	IsPartiallyApproved bool
	CanSkip             bool
}

// CheckResult is the ApprovalCheckResult the spec names.
type CheckResult struct {
	Requests            []Request
	Statuses            map[string]Status // keyed by StepID
	SkippableStepIDs    []string
	EstimatedGasSavings uint64
}

// ExtractRequests implements the best-effort heuristic in spec §4.F: for
// every approve step, the token is step.To; the spender is the to of the
// *next* step; the required amount is step.TokenIn.Amount.
func ExtractRequests(plan *txbuilder.TransactionPlan) []Request {
	var out []Request
	for i, step := range plan.Steps {
		if step.Action != txbuilder.ActionApprove {
			continue
		}
		if i+1 >= len(plan.Steps) {
			continue
		}
		next := plan.Steps[i+1]
		required := big.NewInt(0)
		if step.TokenIn != nil && step.TokenIn.Amount != nil {
			required = step.TokenIn.Amount
		}
		out = append(out, Request{
			StepID:         step.ID,
			Token:          step.To,
			Spender:        next.To,
			RequiredAmount: required,
		})
	}
	return out
}

// CheckApprovals batches one allowance(owner, spender) read per request via
// Multicall3.aggregate3 (allowFailure=true): an individual read failure is
// recorded as current_allowance=0, needs_approval=true rather than
// aborting the batch (coreerr.KindAllowanceReadFailed is recoverable).
func CheckApprovals(ctx context.Context, caller chainio.Caller, multicallAddr, owner common.Address, requests []Request) (*CheckResult, error) {
	calls := make([]chainio.Call3, len(requests))
	for i, r := range requests {
		data, err := allowanceABI.Pack("allowance", owner, r.Spender)
		if err != nil {
			return nil, fmt.Errorf("pack allowance call for %s: %w", r.StepID, err)
		}
		calls[i] = chainio.Call3{Target: r.Token, AllowFailure: true, CallData: data}
	}

	var results []chainio.Result3
	if len(calls) > 0 {
		var err error
		results, err = chainio.Aggregate3(ctx, caller, multicallAddr, calls)
		if err != nil {
			return nil, fmt.Errorf("aggregate3 allowance batch: %w", err)
		}
	}

	result := &CheckResult{Requests: requests, Statuses: make(map[string]Status, len(requests))}
	for i, r := range requests {
		current := big.NewInt(0)
		if i < len(results) && results[i].Success {
			out, err := allowanceABI.Unpack("allowance", results[i].ReturnData)
			if err == nil && len(out) > 0 {
				if v, ok := out[0].(*big.Int); ok {
					current = v
				}
			}
		} else {
			log.Warn().Str("step_id", r.StepID).Msg("allowance read failed; treating as zero allowance")
		}

		isApproved := current.Cmp(r.RequiredAmount) >= 0
		isPartial := current.Sign() > 0 && !isApproved
		status := Status{
			CurrentAllowance:    current,
			RequiredAmount:      r.RequiredAmount,
			IsApproved:          isApproved,
			IsPartiallyApproved: isPartial,
			CanSkip:             isApproved,
		}
		result.Statuses[r.StepID] = status
		if isApproved {
			result.SkippableStepIDs = append(result.SkippableStepIDs, r.StepID)
		}
	}
	result.EstimatedGasSavings = uint64(len(result.SkippableStepIDs)) * GasSavingsPerSkippedApprove
	return result, nil
}

// Annotate writes each request's approval_status onto its step in-place.
// Re-annotating with the same CheckResult is idempotent (Testable
// Property 7): the same status is recomputed and assigned every time.
func Annotate(plan *txbuilder.TransactionPlan, result *CheckResult) {
	for _, step := range plan.Steps {
		status, ok := result.Statuses[step.ID]
		if !ok {
			continue
		}
		step.ApprovalStatus = &txbuilder.ApprovalStatus{
			CurrentAllowance:    status.CurrentAllowance,
			RequiredAmount:      status.RequiredAmount,
			IsApproved:          status.IsApproved,
			IsPartiallyApproved: status.IsPartiallyApproved,
			CanSkip:             status.CanSkip,
		}
	}
}

// FilterApprovedSteps strips every step whose ApprovalStatus.CanSkip is
// true and recomputes the plan's totals. Filtering twice is idempotent:
// the second pass finds nothing left to skip.
func FilterApprovedSteps(plan *txbuilder.TransactionPlan, reg *registry.Registry) *txbuilder.TransactionPlan {
	filtered := &txbuilder.TransactionPlan{
		ID:          plan.ID,
		ChainID:     plan.ChainID,
		FromAddress: plan.FromAddress,
		StrategyID:  plan.StrategyID,
		CreatedAtMs: plan.CreatedAtMs,
		ExpiresAtMs: plan.ExpiresAtMs,
	}
	var totalGas uint64
	for _, step := range plan.Steps {
		if step.ApprovalStatus != nil && step.ApprovalStatus.CanSkip {
			continue
		}
		filtered.Steps = append(filtered.Steps, step)
		totalGas += step.EstimatedGas
	}
	filtered.TotalSteps = len(filtered.Steps)
	filtered.EstimatedTotalGas = totalGas
	filtered.EstimatedTotalGasUSD = reg.GasCostUSD(plan.ChainID, totalGas)
	return filtered
}
