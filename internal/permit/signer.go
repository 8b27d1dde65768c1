package permit

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"

	"swapScope/internal/chain"
	"swapScope/internal/dex"
	"swapScope/internal/model"
)

// validityBuffer pads the signature deadline past the transaction deadline
// so a resubmitted transaction does not outlive its permit.
const validityBuffer = 20 * time.Minute

// nonceTimeout bounds the background nonce lookup.
const nonceTimeout = 10 * time.Second

// State describes where a permit stands for one approval context.
type State int

const (
	// StateNotApplicable means no permit can serve the context.
	StateNotApplicable State = iota + 1
	// StateLoading means the token nonce is still being fetched.
	StateLoading
	// StateNotSigned means a permit could be signed but none is held.
	StateNotSigned
	// StateSigned means a held signature still covers the context.
	StateSigned
)

func (s State) String() string {
	switch s {
	case StateNotApplicable:
		return "not-applicable"
	case StateLoading:
		return "loading"
	case StateNotSigned:
		return "not-signed"
	case StateSigned:
		return "signed"
	default:
		return "unknown"
	}
}

// SignatureData is a signed permit together with the context it was signed
// under. The context fields decide whether the signature still covers a
// later request.
type SignatureData struct {
	V uint8
	R [32]byte
	S [32]byte
	// Deadline is the unix second the signature expires, already padded
	// past the transaction deadline it was gathered for.
	Deadline *big.Int
	Nonce    *big.Int
	Owner    common.Address
	Spender  common.Address
	ChainID  uint64
	Token    common.Address
	Kind     Type
	// Amount is the exact permitted value. Nil for allowed permits,
	// which flip Allowed instead.
	Amount  *big.Int
	Allowed bool
}

// Request is the approval context a permit would replace.
type Request struct {
	Token   model.Currency
	Spender common.Address
	// Amount is the value the spender needs.
	Amount *big.Int
	// Deadline is the unix deadline of the transaction the permit serves.
	Deadline *big.Int
	// Override supplies a descriptor for a token missing from the
	// allowlist.
	Override *Entry
}

type sigKey struct {
	owner   common.Address
	token   common.Address
	spender common.Address
}

type nonceKey struct {
	token common.Address
	owner common.Address
}

type nonceEntry struct {
	nonce *big.Int
	err   error
	done  chan struct{}
}

// Signer gathers permit signatures and holds them per owner, token and
// spender so an unchanged request reuses the signature. The holdings live
// on the Signer instance; a mismatched request drops the stale signature.
type Signer struct {
	wallet chain.Wallet
	caller dex.Caller
	allow  *Allowlist
	logger *zap.Logger

	mu     sync.Mutex
	held   map[sigKey]SignatureData
	nonces map[nonceKey]*nonceEntry
}

// NewSigner wires a signer. A nil allowlist falls back to the defaults.
func NewSigner(wallet chain.Wallet, caller dex.Caller, allow *Allowlist, logger *zap.Logger) (*Signer, error) {
	if wallet == nil {
		return nil, fmt.Errorf("wallet is nil")
	}
	if caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	if allow == nil {
		allow = DefaultAllowlist()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Signer{
		wallet: wallet,
		caller: caller,
		allow:  allow,
		logger: logger,
		held:   make(map[sigKey]SignatureData),
		nonces: make(map[nonceKey]*nonceEntry),
	}, nil
}

// Status reports where the permit for req stands. It never blocks: a
// missing nonce starts a background fetch and the state reads as loading
// until the fetch lands.
func (s *Signer) Status(req Request) (State, *SignatureData) {
	entry, err := s.classify(req)
	if err != nil {
		return StateNotApplicable, nil
	}

	owner := s.wallet.Account()
	key := nonceKey{token: req.Token.Address, owner: owner}
	ne := s.entry(key)
	select {
	case <-ne.done:
	default:
		return StateLoading, nil
	}
	if ne.err != nil {
		// drop the failed lookup so the next poll retries
		s.dropNonce(key)
		return StateLoading, nil
	}

	sk := sigKey{owner: owner, token: req.Token.Address, spender: req.Spender}
	held, ok := s.heldFor(sk)
	if !ok {
		return StateNotSigned, nil
	}
	if !signatureCovers(held, entry, req, owner, s.wallet.ChainID(), ne.nonce) {
		// the context moved; drop the stale signature so a matching
		// request later cannot revive it
		s.dropHeld(sk)
		return StateNotSigned, nil
	}
	return StateSigned, &held
}

// Sign gathers a permit signature for req and holds it for reuse. The
// signature deadline is the request deadline plus the validity buffer.
func (s *Signer) Sign(ctx context.Context, req Request) (SignatureData, error) {
	entry, err := s.classify(req)
	if err != nil {
		return SignatureData{}, err
	}

	owner := s.wallet.Account()
	nonce, err := s.nonce(ctx, nonceKey{token: req.Token.Address, owner: owner})
	if err != nil {
		return SignatureData{}, fmt.Errorf("read permit nonce: %w", err)
	}

	deadline := new(big.Int).Add(req.Deadline, big.NewInt(int64(validityBuffer/time.Second)))
	typed := buildTypedData(entry, req, owner, s.wallet.ChainID(), nonce, deadline)

	raw, err := s.wallet.SignTypedData(ctx, typed)
	if err != nil {
		if chain.IsUserRejected(err) {
			return SignatureData{}, chain.ErrTransactionRejected
		}
		return SignatureData{}, fmt.Errorf("sign permit: %w", err)
	}
	if len(raw) != 65 {
		return SignatureData{}, fmt.Errorf("unexpected signature length %d", len(raw))
	}

	sig := SignatureData{
		Deadline: deadline,
		Nonce:    nonce,
		Owner:    owner,
		Spender:  req.Spender,
		ChainID:  s.wallet.ChainID(),
		Token:    req.Token.Address,
		Kind:     entry.Type,
	}
	copy(sig.R[:], raw[:32])
	copy(sig.S[:], raw[32:64])
	sig.V = raw[64]
	if sig.V < 27 {
		sig.V += 27
	}
	if entry.Type == TypeAllowed {
		sig.Allowed = true
	} else {
		sig.Amount = new(big.Int).Set(req.Amount)
	}

	s.mu.Lock()
	s.held[sigKey{owner: owner, token: req.Token.Address, spender: req.Spender}] = sig
	s.mu.Unlock()
	return sig, nil
}

// Forget drops the held signature and cached nonce for the pair so the
// next Status re-reads the chain. Call it after a permit is consumed
// on-chain.
func (s *Signer) Forget(token, spender common.Address) {
	owner := s.wallet.Account()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, sigKey{owner: owner, token: token, spender: spender})
	delete(s.nonces, nonceKey{token: token, owner: owner})
}

// classify returns the allowlist entry serving req, or the reason no
// permit applies.
func (s *Signer) classify(req Request) (Entry, error) {
	if !s.wallet.SupportsTypedData() {
		return Entry{}, fmt.Errorf("the connected wallet cannot sign typed data")
	}
	if req.Token.Native || req.Token.Address == (common.Address{}) {
		return Entry{}, fmt.Errorf("only tokens take permits")
	}
	if req.Spender == (common.Address{}) {
		return Entry{}, fmt.Errorf("spender is not set")
	}
	if req.Amount == nil {
		return Entry{}, fmt.Errorf("amount is not set")
	}
	if req.Deadline == nil {
		return Entry{}, fmt.Errorf("deadline is not set")
	}
	if req.Override != nil {
		return *req.Override, nil
	}
	entry, ok := s.allow.Lookup(s.wallet.ChainID(), req.Token.Address)
	if !ok {
		return Entry{}, fmt.Errorf("%s does not advertise permit support", req.Token.Symbol)
	}
	return entry, nil
}

// signatureCovers reports whether a held signature still serves the
// request. Any divergence in owner, token, spender, chain, nonce or
// amount invalidates it; the deadline only needs to reach the request's.
func signatureCovers(held SignatureData, entry Entry, req Request, owner common.Address, chainID uint64, nonce *big.Int) bool {
	if held.Owner != owner || held.Token != req.Token.Address || held.Spender != req.Spender {
		return false
	}
	if held.ChainID != chainID || held.Kind != entry.Type {
		return false
	}
	if held.Nonce == nil || nonce == nil || held.Nonce.Cmp(nonce) != 0 {
		return false
	}
	if held.Deadline == nil || req.Deadline == nil || held.Deadline.Cmp(req.Deadline) < 0 {
		return false
	}
	switch entry.Type {
	case TypeAmount:
		if held.Amount == nil || req.Amount == nil || held.Amount.Cmp(req.Amount) != 0 {
			return false
		}
	case TypeAllowed:
		if !held.Allowed {
			return false
		}
	}
	return true
}

func (s *Signer) heldFor(key sigKey) (SignatureData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.held[key]
	return held, ok
}

func (s *Signer) dropHeld(key sigKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, key)
}

// nonce blocks until the token nonce resolves or the context ends.
func (s *Signer) nonce(ctx context.Context, key nonceKey) (*big.Int, error) {
	ne := s.entry(key)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ne.done:
	}
	if ne.err != nil {
		s.dropNonce(key)
		return nil, ne.err
	}
	return ne.nonce, nil
}

func (s *Signer) entry(key nonceKey) *nonceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ne, ok := s.nonces[key]; ok {
		return ne
	}
	ne := &nonceEntry{done: make(chan struct{})}
	s.nonces[key] = ne
	go s.fetchNonce(key, ne)
	return ne
}

func (s *Signer) fetchNonce(key nonceKey, ne *nonceEntry) {
	defer close(ne.done)

	ctx, cancel := context.WithTimeout(context.Background(), nonceTimeout)
	defer cancel()

	nonce, err := dex.PermitNonce(ctx, s.caller, key.token, key.owner)
	if err != nil {
		s.logger.Debug("permit nonce lookup failed",
			zap.Stringer("token", key.token), zap.Error(err))
		ne.err = err
		return
	}
	ne.nonce = nonce
}

func (s *Signer) dropNonce(key nonceKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nonces, key)
}

// buildTypedData shapes the EIP-712 payload for the token's permit
// variant. The domain carries a version field only when the descriptor
// names one.
func buildTypedData(entry Entry, req Request, owner common.Address, chainID uint64, nonce, deadline *big.Int) apitypes.TypedData {
	domainType := []apitypes.Type{{Name: "name", Type: "string"}}
	if entry.Version != "" {
		domainType = append(domainType, apitypes.Type{Name: "version", Type: "string"})
	}
	domainType = append(domainType,
		apitypes.Type{Name: "chainId", Type: "uint256"},
		apitypes.Type{Name: "verifyingContract", Type: "address"},
	)

	types := apitypes.Types{"EIP712Domain": domainType}
	var message apitypes.TypedDataMessage
	if entry.Type == TypeAllowed {
		types["Permit"] = []apitypes.Type{
			{Name: "holder", Type: "address"},
			{Name: "spender", Type: "address"},
			{Name: "nonce", Type: "uint256"},
			{Name: "expiry", Type: "uint256"},
			{Name: "allowed", Type: "bool"},
		}
		message = apitypes.TypedDataMessage{
			"holder":  owner.Hex(),
			"spender": req.Spender.Hex(),
			"nonce":   (*math.HexOrDecimal256)(nonce),
			"expiry":  (*math.HexOrDecimal256)(deadline),
			"allowed": true,
		}
	} else {
		types["Permit"] = []apitypes.Type{
			{Name: "owner", Type: "address"},
			{Name: "spender", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
		}
		message = apitypes.TypedDataMessage{
			"owner":    owner.Hex(),
			"spender":  req.Spender.Hex(),
			"value":    (*math.HexOrDecimal256)(req.Amount),
			"nonce":    (*math.HexOrDecimal256)(nonce),
			"deadline": (*math.HexOrDecimal256)(deadline),
		}
	}

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: "Permit",
		Domain: apitypes.TypedDataDomain{
			Name:              entry.Name,
			Version:           entry.Version,
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: req.Token.Address.Hex(),
		},
		Message: message,
	}
}
