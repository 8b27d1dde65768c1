package chain

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

type fakeRPCError struct {
	code int
	msg  string
}

func (e *fakeRPCError) Error() string  { return e.msg }
func (e *fakeRPCError) ErrorCode() int { return e.code }

type fakeDataError struct {
	msg  string
	data interface{}
}

func (e *fakeDataError) Error() string          { return e.msg }
func (e *fakeDataError) ErrorData() interface{} { return e.data }

// encodeRevert builds ABI-encoded Error(string) payload.
func encodeRevert(reason string) []byte {
	data := append([]byte{}, revertSelector...)
	data = append(data, common.LeftPadBytes([]byte{0x20}, 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(int64(len(reason))).Bytes(), 32)...)
	padded := len(reason)
	if rem := padded % 32; rem != 0 {
		padded += 32 - rem
	}
	return append(data, common.RightPadBytes([]byte(reason), padded)...)
}

func TestIsUserRejected(t *testing.T) {
	t.Parallel()

	require.True(t, IsUserRejected(&fakeRPCError{code: 4001, msg: "User rejected the request."}))
	require.True(t, IsUserRejected(fmt.Errorf("send: %w", &fakeRPCError{code: 4001, msg: "denied"})))
	require.False(t, IsUserRejected(&fakeRPCError{code: -32000, msg: "nonce too low"}))
	require.False(t, IsUserRejected(errors.New("plain failure")))
	require.False(t, IsUserRejected(nil))
}

func TestRevertReasonFromData(t *testing.T) {
	t.Parallel()

	reason := "UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"
	err := &fakeDataError{
		msg:  "execution reverted",
		data: hexutil.Encode(encodeRevert(reason)),
	}

	got, ok := RevertReason(err)
	require.True(t, ok)
	require.Equal(t, reason, got)
}

func TestRevertReasonFromMessage(t *testing.T) {
	t.Parallel()

	got, ok := RevertReason(errors.New("execution reverted: TransferHelper: TRANSFER_FROM_FAILED"))
	require.True(t, ok)
	require.Equal(t, "TransferHelper: TRANSFER_FROM_FAILED", got)

	_, ok = RevertReason(errors.New("execution reverted"))
	require.False(t, ok)

	_, ok = RevertReason(errors.New("connection refused"))
	require.False(t, ok)

	_, ok = RevertReason(nil)
	require.False(t, ok)
}

func TestDecodeRevertDataRejectsOtherSelectors(t *testing.T) {
	t.Parallel()

	data := encodeRevert("nope")
	data[0] ^= 0xff
	_, ok := decodeRevertData(data)
	require.False(t, ok)

	_, ok = decodeRevertData([]byte{0x08, 0xc3})
	require.False(t, ok)
}
