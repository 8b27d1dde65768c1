package permit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	daiAddr  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdcAddr = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	uniAddr  = common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
	cakeAddr = common.HexToAddress("0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82")
)

func TestDefaultAllowlist(t *testing.T) {
	t.Parallel()

	list := DefaultAllowlist()

	cases := []struct {
		name        string
		token       common.Address
		wantType    Type
		wantName    string
		wantVersion string
	}{
		{name: "dai signs allowed permits", token: daiAddr, wantType: TypeAllowed, wantName: "Dai Stablecoin", wantVersion: "1"},
		{name: "usdc signs amount permits", token: usdcAddr, wantType: TypeAmount, wantName: "USD Coin", wantVersion: "2"},
		{name: "uni omits the domain version", token: uniAddr, wantType: TypeAmount, wantName: "Uniswap", wantVersion: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			entry, ok := list.Lookup(1, tc.token)
			require.True(t, ok)
			require.Equal(t, tc.wantType, entry.Type)
			require.Equal(t, tc.wantName, entry.Name)
			require.Equal(t, tc.wantVersion, entry.Version)
		})
	}

	_, ok := list.Lookup(1, cakeAddr)
	require.False(t, ok, "unlisted token admitted")
	_, ok = list.Lookup(56, daiAddr)
	require.False(t, ok, "listing leaked across chains")
}

func TestLoadAllowlistWithoutPathKeepsDefaults(t *testing.T) {
	t.Parallel()

	list, err := LoadAllowlist("")
	require.NoError(t, err)

	_, ok := list.Lookup(1, daiAddr)
	require.True(t, ok)
}

func TestLoadAllowlistMergesOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "permits.json")
	contents := `{
		"1": {
			"0x6B175474E89094C44Da98b954EedeAC495271d0F": {"type": "amount", "name": "Sai Stablecoin", "version": "2"}
		},
		"56": {
			"0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82": {"type": "amount", "name": "PancakeSwap Token"}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	list, err := LoadAllowlist(path)
	require.NoError(t, err)

	dai, ok := list.Lookup(1, daiAddr)
	require.True(t, ok)
	require.Equal(t, TypeAmount, dai.Type)
	require.Equal(t, "Sai Stablecoin", dai.Name)
	require.Equal(t, "2", dai.Version)

	usdc, ok := list.Lookup(1, usdcAddr)
	require.True(t, ok, "untouched default dropped by the merge")
	require.Equal(t, "USD Coin", usdc.Name)

	cake, ok := list.Lookup(56, cakeAddr)
	require.True(t, ok)
	require.Equal(t, TypeAmount, cake.Type)
	require.Equal(t, "", cake.Version)
}

func TestLoadAllowlistRejectsBadFiles(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		contents string
		wantErr  string
	}{
		{
			name:     "malformed json",
			contents: `{"1": `,
			wantErr:  "parse permit allowlist",
		},
		{
			name:     "unknown permit type",
			contents: `{"1": {"0x6B175474E89094C44Da98b954EedeAC495271d0F": {"type": "signed", "name": "Dai"}}}`,
			wantErr:  `unknown permit type "signed"`,
		},
		{
			name:     "chain key is not a number",
			contents: `{"mainnet": {"0x6B175474E89094C44Da98b954EedeAC495271d0F": {"type": "amount", "name": "Dai"}}}`,
			wantErr:  `chain "mainnet"`,
		},
		{
			name:     "token key is not an address",
			contents: `{"1": {"dai": {"type": "amount", "name": "Dai"}}}`,
			wantErr:  "is not an address",
		},
		{
			name:     "missing domain name",
			contents: `{"1": {"0x6B175474E89094C44Da98b954EedeAC495271d0F": {"type": "amount"}}}`,
			wantErr:  "has no domain name",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "permits.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.contents), 0o644))
			_, err := LoadAllowlist(path)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}

	_, err := LoadAllowlist(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "read permit allowlist")
}

func TestPermitTypeString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "amount", TypeAmount.String())
	require.Equal(t, "allowed", TypeAllowed.String())
	require.Equal(t, "unknown", Type(0).String())
}
