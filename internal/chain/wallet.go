package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Wallet signs and submits on behalf of a single account.
type Wallet interface {
	// Account returns the connected account address.
	Account() common.Address
	// ChainID returns the chain the wallet operates on.
	ChainID() uint64
	// EstimateGas asks for a gas estimate of the call.
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	// CallStatic executes the call without submitting it.
	CallStatic(ctx context.Context, call ethereum.CallMsg) ([]byte, error)
	// SendTransaction signs and submits the call with the given gas limit.
	SendTransaction(ctx context.Context, call ethereum.CallMsg, gasLimit uint64) (common.Hash, error)
	// SignTypedData produces an EIP-712 signature over the typed data.
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
	// SupportsTypedData reports whether the wallet can sign typed data at
	// all. Some managed signers cannot.
	SupportsTypedData() bool
}

// NodeWallet submits through an account managed by the connected node or an
// external signer speaking the node API.
type NodeWallet struct {
	client    *Client
	account   common.Address
	chainID   uint64
	typedData bool
}

// NewNodeWallet wires a wallet for an account the node manages.
func NewNodeWallet(client *Client, account common.Address, chainID uint64, typedData bool) (*NodeWallet, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if account == (common.Address{}) {
		return nil, fmt.Errorf("wallet account is empty")
	}
	return &NodeWallet{client: client, account: account, chainID: chainID, typedData: typedData}, nil
}

func (w *NodeWallet) Account() common.Address { return w.account }

func (w *NodeWallet) ChainID() uint64 { return w.chainID }

func (w *NodeWallet) SupportsTypedData() bool { return w.typedData }

func (w *NodeWallet) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	call.From = w.account
	return w.client.EstimateGas(ctx, call)
}

func (w *NodeWallet) CallStatic(ctx context.Context, call ethereum.CallMsg) ([]byte, error) {
	call.From = w.account
	return w.client.CallContract(ctx, call, nil)
}

func (w *NodeWallet) SendTransaction(ctx context.Context, call ethereum.CallMsg, gasLimit uint64) (common.Hash, error) {
	args := map[string]interface{}{
		"from": w.account,
		"to":   call.To,
		"gas":  hexutil.Uint64(gasLimit),
	}
	if len(call.Data) > 0 {
		args["data"] = hexutil.Bytes(call.Data)
	}
	if call.Value != nil && call.Value.Sign() > 0 {
		args["value"] = (*hexutil.Big)(call.Value)
	}

	var txHash common.Hash
	if err := w.client.RPC().CallContext(ctx, &txHash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return txHash, nil
}

func (w *NodeWallet) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	var sig hexutil.Bytes
	if err := w.client.RPC().CallContext(ctx, &sig, "eth_signTypedData_v4", w.account, data); err != nil {
		return nil, err
	}
	return sig, nil
}

// KeyWallet signs locally with a secp256k1 key and submits raw
// transactions.
type KeyWallet struct {
	client  *Client
	key     *ecdsa.PrivateKey
	account common.Address
	chainID uint64
}

// NewKeyWallet builds a wallet from a hex-encoded private key.
func NewKeyWallet(client *Client, hexKey string, chainID uint64) (*KeyWallet, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &KeyWallet{
		client:  client,
		key:     key,
		account: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

func (w *KeyWallet) Account() common.Address { return w.account }

func (w *KeyWallet) ChainID() uint64 { return w.chainID }

func (w *KeyWallet) SupportsTypedData() bool { return true }

func (w *KeyWallet) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	call.From = w.account
	return w.client.EstimateGas(ctx, call)
}

func (w *KeyWallet) CallStatic(ctx context.Context, call ethereum.CallMsg) ([]byte, error) {
	call.From = w.account
	return w.client.CallContract(ctx, call, nil)
}

func (w *KeyWallet) SendTransaction(ctx context.Context, call ethereum.CallMsg, gasLimit uint64) (common.Hash, error) {
	if call.To == nil {
		return common.Hash{}, fmt.Errorf("swap transactions always have a target")
	}
	nonce, err := w.client.PendingNonceAt(ctx, w.account)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}

	head, err := w.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch head: %w", err)
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := w.client.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(w.chainID),
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        call.To,
			Value:     value,
			Data:      call.Data,
		})
	} else {
		// chains without EIP-1559 headers take legacy pricing
		gasPrice, err := w.client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       call.To,
			Value:    value,
			Data:     call.Data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(w.chainID)), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func (w *KeyWallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	// align recovery id with on-chain ecrecover expectations
	sig[64] += 27
	return sig, nil
}
