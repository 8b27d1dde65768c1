package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServeConfig holds the settings of the long-running daemon: the HTTP quote
// surface, the transaction watcher, and the optional standing quote.
type ServeConfig struct {
	RPCURL       string
	Quoter       string
	RouterAPI    string
	MaxHops      int
	MaxBlockAge  uint64
	QuoterRPS    int
	Concurrency  int
	SlippageBips uint64
	DeadlineTTL  time.Duration

	ListenAddr string

	// Watch* pin a standing pair the poller keeps freshly quoted. All
	// three of input, output, and amount must be set to arm it.
	WatchInput   string
	WatchOutput  string
	WatchAmount  string
	WatchMode    string
	PollInterval time.Duration

	WatchInterval time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	PgDSN         string

	LogLevel string
}

// LoadServe merges config file, environment variables, and flags into a
// ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDerivationDefaults(v)
	v.SetDefault("deadline-ttl", 20*time.Minute)
	v.SetDefault("listen", ":8080")
	v.SetDefault("watch-mode", "ExactIn")
	v.SetDefault("poll-interval", 15*time.Second)
	v.SetDefault("watch-interval", 15*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return ServeConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		RPCURL:       v.GetString("rpc"),
		Quoter:       v.GetString("quoter"),
		RouterAPI:    v.GetString("router-api"),
		MaxHops:      v.GetInt("max-hops"),
		MaxBlockAge:  v.GetUint64("max-block-age"),
		QuoterRPS:    v.GetInt("quoter-rps"),
		Concurrency:  v.GetInt("concurrency"),
		SlippageBips: v.GetUint64("slippage-bips"),
		DeadlineTTL:  v.GetDuration("deadline-ttl"),

		ListenAddr: v.GetString("listen"),

		WatchInput:   v.GetString("watch-input"),
		WatchOutput:  v.GetString("watch-output"),
		WatchAmount:  v.GetString("watch-amount"),
		WatchMode:    v.GetString("watch-mode"),
		PollInterval: v.GetDuration("poll-interval"),

		WatchInterval: v.GetDuration("watch-interval"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		PgDSN:         v.GetString("pg-dsn"),

		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
