package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"

	repoCrypto "eventpass/crypto"
	"eventpass/native/pass"
)

// Config is the one-time deployment configuration. Everything here is sealed
// into the engine at construction; there is no runtime mutation path.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`

	Token     TokenConfig   `toml:"token"`
	Domain    DomainConfig  `toml:"domain"`
	Prices    PriceConfig   `toml:"prices"`
	Payees    []PayeeConfig `toml:"payees"`
	Whitelist []string      `toml:"whitelist"`
	RateLimit *RateLimitCfg `toml:"ratelimit"`
}

// TokenConfig is pass-through display metadata, opaque to the engine.
type TokenConfig struct {
	Name    string `toml:"Name"`
	Symbol  string `toml:"Symbol"`
	BaseURI string `toml:"BaseURI"`
}

// DomainConfig holds the typed-data signing context.
type DomainConfig struct {
	Name              string `toml:"Name"`
	Version           string `toml:"Version"`
	ChainID           uint64 `toml:"ChainID"`
	VerifyingContract string `toml:"VerifyingContract"`
	Authority         string `toml:"Authority"`
}

// PriceConfig holds the three tier prices as decimal strings in the smallest
// currency unit.
type PriceConfig struct {
	Standard   string `toml:"Standard"`
	Discounted string `toml:"Discounted"`
	Premium    string `toml:"Premium"`
}

// PayeeConfig pairs a beneficiary address with its share weight.
type PayeeConfig struct {
	Address string `toml:"Address"`
	Shares  uint64 `toml:"Shares"`
}

// RateLimitCfg bounds redemption traffic per source.
type RateLimitCfg struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "127.0.0.1:8571"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./passdata"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unusable deployments before anything is constructed.
func (c *Config) Validate() error {
	if _, err := c.DomainDescriptor(); err != nil {
		return err
	}
	if _, err := c.PriceTable(); err != nil {
		return err
	}
	if _, err := c.PayeeList(); err != nil {
		return err
	}
	if _, err := c.WhitelistMembers(); err != nil {
		return err
	}
	return nil
}

// DomainDescriptor builds the sealed signing domain.
func (c *Config) DomainDescriptor() (pass.Domain, error) {
	contract, err := repoCrypto.DecodeAddress(c.Domain.VerifyingContract)
	if err != nil {
		return pass.Domain{}, fmt.Errorf("config: domain verifying contract: %w", err)
	}
	authority, err := repoCrypto.DecodeAddress(c.Domain.Authority)
	if err != nil {
		return pass.Domain{}, fmt.Errorf("config: domain authority: %w", err)
	}
	return pass.NewDomain(c.Domain.Name, c.Domain.Version, c.Domain.ChainID, contract, authority)
}

// PriceTable builds the sealed tier pricing table.
func (c *Config) PriceTable() (*pass.PriceTable, error) {
	standard, err := parseAmount("standard", c.Prices.Standard)
	if err != nil {
		return nil, err
	}
	discounted, err := parseAmount("discounted", c.Prices.Discounted)
	if err != nil {
		return nil, err
	}
	premium, err := parseAmount("premium", c.Prices.Premium)
	if err != nil {
		return nil, err
	}
	return pass.NewPriceTable(standard, discounted, premium)
}

// PayeeList builds the sealed beneficiary set.
func (c *Config) PayeeList() ([]pass.Payee, error) {
	if len(c.Payees) == 0 {
		return nil, fmt.Errorf("config: %w: at least one payee required", pass.ErrInvalidShares)
	}
	payees := make([]pass.Payee, 0, len(c.Payees))
	for _, entry := range c.Payees {
		addr, err := repoCrypto.DecodeAddress(entry.Address)
		if err != nil {
			return nil, fmt.Errorf("config: payee address: %w", err)
		}
		if entry.Shares == 0 {
			return nil, fmt.Errorf("config: %w: payee %s has zero shares", pass.ErrInvalidShares, entry.Address)
		}
		payees = append(payees, pass.Payee{Address: addr, Shares: entry.Shares})
	}
	return payees, nil
}

// WhitelistMembers decodes the pre-approved membership set.
func (c *Config) WhitelistMembers() ([]ethcommon.Address, error) {
	if len(c.Whitelist) == 0 {
		return nil, fmt.Errorf("config: whitelist must not be empty")
	}
	members := make([]ethcommon.Address, 0, len(c.Whitelist))
	for _, raw := range c.Whitelist {
		addr, err := repoCrypto.DecodeAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("config: whitelist entry: %w", err)
		}
		members = append(members, addr)
	}
	return members, nil
}

// TokenMetadata returns the pass-through display metadata.
func (c *Config) TokenMetadata() pass.Metadata {
	return pass.Metadata{
		Name:    c.Token.Name,
		Symbol:  c.Token.Symbol,
		BaseURI: c.Token.BaseURI,
	}
}

func parseAmount(label, raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("config: %s price required", label)
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid %s price %q", label, raw)
	}
	return value, nil
}
