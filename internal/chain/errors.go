package chain

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrTransactionRejected marks a submission the user declined in their
// wallet. Callers treat it as a quiet outcome, not a fault.
var ErrTransactionRejected = errors.New("transaction rejected")

// userRejectedCode is the EIP-1193 error code providers return when the
// user denies a request.
const userRejectedCode = 4001

// IsUserRejected reports whether the provider error means the user declined
// the request.
func IsUserRejected(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == userRejectedCode
	}
	return false
}

// revertSelector is the 4-byte selector of Error(string).
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// RevertReason extracts a human-readable revert string from a failed call.
// The second return is false when no reason could be recovered.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexStr, ok := dataErr.ErrorData().(string); ok {
			if reason, ok := decodeRevertData(common.FromHex(hexStr)); ok {
				return reason, true
			}
		}
	}

	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted"); idx >= 0 {
		rest := strings.TrimPrefix(msg[idx:], "execution reverted")
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		if rest != "" {
			return rest, true
		}
	}
	return "", false
}

// decodeRevertData unpacks ABI-encoded Error(string) revert data.
func decodeRevertData(data []byte) (string, bool) {
	if len(data) < 4+64 {
		return "", false
	}
	for i := range revertSelector {
		if data[i] != revertSelector[i] {
			return "", false
		}
	}
	payload := data[4:]
	offset := new(big.Int).SetBytes(payload[:32])
	if !offset.IsUint64() || offset.Uint64()+32 > uint64(len(payload)) {
		return "", false
	}
	start := offset.Uint64()
	strLen := new(big.Int).SetBytes(payload[start : start+32])
	if !strLen.IsUint64() || start+32+strLen.Uint64() > uint64(len(payload)) {
		return "", false
	}
	return string(payload[start+32 : start+32+strLen.Uint64()]), true
}
