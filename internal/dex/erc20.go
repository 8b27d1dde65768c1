package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceOf reads the token balance of an account.
func BalanceOf(ctx context.Context, caller Caller, token, owner common.Address) (*big.Int, error) {
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := CallMethod(ctx, caller, token, parsed, "balanceOf", nil, owner)
	if err != nil {
		return nil, err
	}
	return AsBigInt(values[0])
}

// Allowance reads the amount a spender may pull from an owner.
func Allowance(ctx context.Context, caller Caller, token, owner, spender common.Address) (*big.Int, error) {
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := CallMethod(ctx, caller, token, parsed, "allowance", nil, owner, spender)
	if err != nil {
		return nil, err
	}
	return AsBigInt(values[0])
}

// PermitNonce reads the off-chain-permit nonce of an owner. Tokens without
// permit support fail this call.
func PermitNonce(ctx context.Context, caller Caller, token, owner common.Address) (*big.Int, error) {
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := CallMethod(ctx, caller, token, parsed, "nonces", nil, owner)
	if err != nil {
		return nil, err
	}
	return AsBigInt(values[0])
}

// PackApprove encodes an approve call for the spender.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return parsed.Pack("approve", spender, amount)
}
