package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// ensRegistryAddr is the ENS registry, deployed at the same address on
// mainnet and its test networks.
var ensRegistryAddr = common.HexToAddress("0x00000000000C2E074eC69A0dBb2997BA6C7d2e1e")

const ensRegistryABI = `[
	{"name":"resolver","type":"function","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
]`

const ensResolverABI = `[
	{"name":"addr","type":"function","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
]`

var (
	ensRegistryOnce   sync.Once
	ensRegistryParsed abi.ABI
	ensResolverParsed abi.ABI
	ensParseErr       error
)

func ensABIs() (abi.ABI, abi.ABI, error) {
	ensRegistryOnce.Do(func() {
		ensRegistryParsed, ensParseErr = abi.JSON(strings.NewReader(ensRegistryABI))
		if ensParseErr != nil {
			return
		}
		ensResolverParsed, ensParseErr = abi.JSON(strings.NewReader(ensResolverABI))
	})
	return ensRegistryParsed, ensResolverParsed, ensParseErr
}

// Namehash computes the EIP-137 node of a name.
func Namehash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash)
	}
	return node
}

// ResolveState describes the progress of a name lookup.
type ResolveState int

const (
	// ResolveDone means the lookup finished with an address.
	ResolveDone ResolveState = iota + 1
	// ResolvePending means the lookup is still in flight.
	ResolvePending
	// ResolveFailed means the lookup finished without an address.
	ResolveFailed
)

type ensEntry struct {
	addr common.Address
	err  error
	done chan struct{}
}

// ENSResolver resolves names through the on-chain registry with a
// lookup cache. Lookups started by TryResolve complete in the background so
// callers can poll without blocking.
type ENSResolver struct {
	client  *Client
	enabled bool
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]*ensEntry
}

// NewENSResolver builds a resolver. Chains without an ENS deployment get a
// disabled resolver that fails every lookup.
func NewENSResolver(client *Client, chainID uint64, logger *zap.Logger) *ENSResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ENSResolver{
		client:  client,
		enabled: chainID == 1,
		timeout: 10 * time.Second,
		logger:  logger,
		entries: make(map[string]*ensEntry),
	}
}

// Resolve blocks until the name resolves or the context ends.
func (r *ENSResolver) Resolve(ctx context.Context, name string) (common.Address, error) {
	entry := r.entry(name)
	select {
	case <-ctx.Done():
		return common.Address{}, ctx.Err()
	case <-entry.done:
		return entry.addr, entry.err
	}
}

// TryResolve reports the current state of the lookup, starting it on first
// use. It never blocks.
func (r *ENSResolver) TryResolve(name string) (common.Address, ResolveState) {
	entry := r.entry(name)
	select {
	case <-entry.done:
		if entry.err != nil {
			return common.Address{}, ResolveFailed
		}
		return entry.addr, ResolveDone
	default:
		return common.Address{}, ResolvePending
	}
}

func (r *ENSResolver) entry(name string) *ensEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[name]; ok {
		return entry
	}
	entry := &ensEntry{done: make(chan struct{})}
	r.entries[name] = entry
	go r.lookup(name, entry)
	return entry
}

func (r *ENSResolver) lookup(name string, entry *ensEntry) {
	defer close(entry.done)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	addr, err := r.lookupAddr(ctx, name)
	if err != nil {
		r.logger.Debug("ens lookup failed", zap.String("name", name), zap.Error(err))
		entry.err = err
		return
	}
	entry.addr = addr
}

func (r *ENSResolver) lookupAddr(ctx context.Context, name string) (common.Address, error) {
	if !r.enabled {
		return common.Address{}, fmt.Errorf("name service is not deployed on this chain")
	}
	if r.client == nil {
		return common.Address{}, fmt.Errorf("chain client is nil")
	}
	if name == "" {
		return common.Address{}, fmt.Errorf("empty name")
	}

	registryABI, resolverABI, err := ensABIs()
	if err != nil {
		return common.Address{}, err
	}

	node := Namehash(name)

	data, err := registryABI.Pack("resolver", node)
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &ensRegistryAddr, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("registry lookup: %w", err)
	}
	values, err := registryABI.Unpack("resolver", out)
	if err != nil {
		return common.Address{}, err
	}
	resolverAddr, ok := values[0].(common.Address)
	if !ok || resolverAddr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no resolver set for %s", name)
	}

	data, err = resolverABI.Pack("addr", node)
	if err != nil {
		return common.Address{}, err
	}
	out, err = r.client.CallContract(ctx, ethereum.CallMsg{To: &resolverAddr, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolver lookup: %w", err)
	}
	values, err = resolverABI.Unpack("addr", out)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no address set for %s", name)
	}
	return addr, nil
}
