package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SwapConfig holds the settings of a derive-and-submit run. Exactly one of
// Account and PrivateKey selects the wallet.
type SwapConfig struct {
	RPCURL       string
	InputToken   string
	OutputToken  string
	Amount       string
	SwapMode     string
	Quoter       string
	RouterAPI    string
	MaxHops      int
	MaxBlockAge  uint64
	QuoterRPS    int
	Concurrency  int
	SlippageBips uint64

	Recipient     string
	DeadlineTTL   time.Duration
	GasMarginBips uint64

	Account    string
	PrivateKey string
	TypedData  bool

	PermitAllowlist string
	TxLog           string
	PgDSN           string

	Wait         bool
	WaitTimeout  time.Duration
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	LogLevel string
}

// LoadSwap merges config file, environment variables, and flags into a
// SwapConfig.
func LoadSwap(cfgFile string, flags *pflag.FlagSet) (SwapConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("swap-mode", "ExactIn")
	setDerivationDefaults(v)
	v.SetDefault("deadline-ttl", 20*time.Minute)
	v.SetDefault("gas-margin-bips", uint64(1000))
	v.SetDefault("typed-data", true)
	v.SetDefault("tx-log", "./data/transactions.jsonl")
	v.SetDefault("wait", true)
	v.SetDefault("wait-timeout", 5*time.Minute)
	v.SetDefault("poll-interval", 5*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return SwapConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return SwapConfig{}, err
	}

	cfg := SwapConfig{
		RPCURL:       v.GetString("rpc"),
		InputToken:   v.GetString("input"),
		OutputToken:  v.GetString("output"),
		Amount:       v.GetString("amount"),
		SwapMode:     v.GetString("swap-mode"),
		Quoter:       v.GetString("quoter"),
		RouterAPI:    v.GetString("router-api"),
		MaxHops:      v.GetInt("max-hops"),
		MaxBlockAge:  v.GetUint64("max-block-age"),
		QuoterRPS:    v.GetInt("quoter-rps"),
		Concurrency:  v.GetInt("concurrency"),
		SlippageBips: v.GetUint64("slippage-bips"),

		Recipient:     v.GetString("recipient"),
		DeadlineTTL:   v.GetDuration("deadline-ttl"),
		GasMarginBips: v.GetUint64("gas-margin-bips"),

		Account:    v.GetString("account"),
		PrivateKey: v.GetString("private-key"),
		TypedData:  v.GetBool("typed-data"),

		PermitAllowlist: v.GetString("permit-allowlist"),
		TxLog:           v.GetString("tx-log"),
		PgDSN:           v.GetString("pg-dsn"),

		Wait:         v.GetBool("wait"),
		WaitTimeout:  v.GetDuration("wait-timeout"),
		PollInterval: v.GetDuration("poll-interval"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),

		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
