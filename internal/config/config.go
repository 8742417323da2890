package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// ChainFile models chain.json.
type ChainFile struct {
	ChainID      int64  `json:"chainId"`
	RPCURL       string `json:"rpcUrl"`
	NativeSymbol string `json:"nativeSymbol"`
	Timeouts     struct {
		RPCTimeoutMs   int `json:"rpcTimeoutMs"`
		ClaimTimeoutMs int `json:"claimTimeoutMs"`
		ReceiptPollMs  int `json:"receiptPollMs"`
	} `json:"timeouts"`
}

// AppConfig ties together chain.json, environment and derived values.
type AppConfig struct {
	ChainFile ChainFile
	Service   ServiceConfig
	Chain     ChainConfig
}

type ServiceConfig struct {
	HTTPPort      int           `env:"DROP_HTTP_PORT" envDefault:"3000"`
	APISecret     string        `env:"DROP_API_SECRET"`
	ClockSkew     time.Duration `env:"DROP_API_CLOCK_SKEW" envDefault:"60s"`
	CatalogPath   string        `env:"DROP_CATALOG_PATH" envDefault:"collections.toml"`
	CatalogDSN    string        `env:"DROP_CATALOG_DSN"`
	ChainFilePath string        `env:"CHAIN_CONFIG_PATH" envDefault:"chain.json"`
}

type ChainConfig struct {
	RPCURL       string `env:"CHAIN_RPC_URL"`
	PrivateKey   string `env:"CHAIN_PRIVATE_KEY"`
	KeystorePath string `env:"CHAIN_KEYSTORE_PATH"`
	Passphrase   string `env:"CHAIN_KEYSTORE_PASSPHRASE"`

	// Derived from chain.json.
	ChainID      int64
	NativeSymbol string
	ReadTimeout  time.Duration
	ClaimTimeout time.Duration
	ReceiptPoll  time.Duration
}

// Offline reports whether no node is configured, in which case the in-memory ledger is used.
func (c ChainConfig) Offline() bool {
	return c.RPCURL == ""
}

const (
	defaultReadTimeout  = 10 * time.Second
	defaultClaimTimeout = 2 * time.Minute
	defaultReceiptPoll  = 2 * time.Second
)

// Load aggregates configuration from disk and environment. A missing chain file is not an
// error: the client then runs against the in-memory ledger unless CHAIN_RPC_URL is set.
func Load() (*AppConfig, error) {
	var serviceCfg ServiceConfig
	if err := env.Parse(&serviceCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	var chainCfg ChainConfig
	if err := env.Parse(&chainCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	chainFile, err := loadChainFile(serviceCfg.ChainFilePath)
	if err != nil {
		return nil, fmt.Errorf("load chain file: %w", err)
	}

	if chainCfg.RPCURL == "" {
		chainCfg.RPCURL = chainFile.RPCURL
	}
	chainCfg.ChainID = chainFile.ChainID
	chainCfg.NativeSymbol = chainFile.NativeSymbol
	if chainCfg.NativeSymbol == "" {
		chainCfg.NativeSymbol = "ETH"
	}
	chainCfg.ReadTimeout = millisOr(chainFile.Timeouts.RPCTimeoutMs, defaultReadTimeout)
	chainCfg.ClaimTimeout = millisOr(chainFile.Timeouts.ClaimTimeoutMs, defaultClaimTimeout)
	chainCfg.ReceiptPoll = millisOr(chainFile.Timeouts.ReceiptPollMs, defaultReceiptPoll)

	return &AppConfig{
		ChainFile: *chainFile,
		Service:   serviceCfg,
		Chain:     chainCfg,
	}, nil
}

func loadChainFile(path string) (*ChainFile, error) {
	var cfg ChainFile
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func millisOr(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
