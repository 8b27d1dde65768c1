package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// QuoteConfig holds the settings of a one-shot trade derivation, loaded
// from flags, env, or config file.
type QuoteConfig struct {
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
	LogLevel     string
}

// LoadQuote merges config file, environment variables, and flags into a
// QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("swap-mode", "ExactIn")
	setDerivationDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return QuoteConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
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
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

// setDerivationDefaults covers the keys every command that derives trades
// shares.
func setDerivationDefaults(v *viper.Viper) {
	v.SetDefault("quoter", "local")
	v.SetDefault("max-hops", 3)
	v.SetDefault("max-block-age", uint64(10))
	v.SetDefault("quoter-rps", 10)
	v.SetDefault("concurrency", 8)
	v.SetDefault("slippage-bips", uint64(50))
	v.SetDefault("log-level", "info")
}

// readConfigFile loads an explicit config file, or discovers ./config.* when
// none is named. A missing discovered file is fine; a missing named file is
// not.
func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
