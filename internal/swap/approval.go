package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/dex"
	"swapScope/internal/model"
)

// ApprovalState reports how far along the router's spending permission is.
type ApprovalState int

const (
	// NotApproved means the allowance is below the trade's input.
	NotApproved ApprovalState = iota + 1
	// ApprovalPending means an approve transaction is already in flight.
	ApprovalPending
	// Approved means the spender can pull the full input amount.
	Approved
)

func (s ApprovalState) String() string {
	switch s {
	case NotApproved:
		return "not-approved"
	case ApprovalPending:
		return "pending"
	case Approved:
		return "approved"
	default:
		return fmt.Sprintf("approval(%d)", int(s))
	}
}

// PendingApprovals answers whether an approval for a token/spender pair is
// already in flight, so callers do not submit duplicates.
type PendingApprovals interface {
	HasPendingApproval(token, spender common.Address) bool
}

// maxApproval is 2^256-1, the unlimited allowance most tokens special-case
// into a no-bookkeeping fast path.
var maxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// CheckApproval classifies the owner's allowance against the amount the
// spender needs. The native coin needs no approval. A nil pending source
// skips the in-flight check.
func CheckApproval(ctx context.Context, caller dex.Caller, pending PendingApprovals, amount model.TokenAmount, owner, spender common.Address) (ApprovalState, error) {
	if amount.Currency.Native {
		return Approved, nil
	}
	if spender == (common.Address{}) {
		return 0, fmt.Errorf("spender is not set")
	}
	allowance, err := dex.Allowance(ctx, caller, amount.Currency.Address, owner, spender)
	if err != nil {
		return 0, fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(amount.Raw) >= 0 {
		return Approved, nil
	}
	if pending != nil && pending.HasPendingApproval(amount.Currency.Address, spender) {
		return ApprovalPending, nil
	}
	return NotApproved, nil
}

// BuildApproveCall encodes an approve for the spender. Unlimited approvals
// are preferred; exact falls back to the amount itself for tokens that
// reject 2^256-1.
func BuildApproveCall(token model.Currency, spender common.Address, amount *big.Int, exact bool) (CallDescriptor, error) {
	if token.Native {
		return CallDescriptor{}, fmt.Errorf("the native coin cannot be approved")
	}
	if spender == (common.Address{}) {
		return CallDescriptor{}, fmt.Errorf("spender is not set")
	}
	value := maxApproval
	if exact {
		if amount == nil {
			return CallDescriptor{}, fmt.Errorf("exact approval needs an amount")
		}
		value = amount
	}
	data, err := dex.PackApprove(spender, value)
	if err != nil {
		return CallDescriptor{}, fmt.Errorf("pack approve: %w", err)
	}
	return CallDescriptor{
		To:     token.Address,
		Method: "approve",
		Args:   []interface{}{spender, value},
		Data:   data,
	}, nil
}
