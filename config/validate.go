package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/samparke/cross-chain-rebase-token/crypto"
)

// Validate rejects configurations the daemon cannot safely start with.
func Validate(cfg *Config) error {
	if cfg.DomainID == 0 {
		return fmt.Errorf("config: DomainID must be non-zero")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must be set")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must be set")
	}
	if _, err := crypto.DecodeAddress(cfg.Owner); err != nil {
		return fmt.Errorf("config: Owner: %w", err)
	}
	for _, minter := range cfg.Minters {
		if _, err := crypto.DecodeAddress(minter); err != nil {
			return fmt.Errorf("config: Minters entry %q: %w", minter, err)
		}
	}
	if strings.TrimSpace(cfg.RateController) != "" {
		if _, err := crypto.DecodeAddress(cfg.RateController); err != nil {
			return fmt.Errorf("config: RateController: %w", err)
		}
	}
	rate, ok := new(big.Int).SetString(strings.TrimSpace(cfg.InitialRate), 10)
	if !ok {
		return fmt.Errorf("config: InitialRate %q is not a base-10 integer", cfg.InitialRate)
	}
	if rate.Sign() < 0 {
		return fmt.Errorf("config: InitialRate must not be negative")
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == cfg.DomainID {
			return fmt.Errorf("config: AllowedOrigins must not include the local domain %d", cfg.DomainID)
		}
	}
	seen := make(map[uint64]struct{}, len(cfg.Peers))
	for _, peer := range cfg.Peers {
		if peer.Domain == 0 || peer.Domain == cfg.DomainID {
			return fmt.Errorf("config: peer domain %d is invalid", peer.Domain)
		}
		if strings.TrimSpace(peer.URL) == "" {
			return fmt.Errorf("config: peer %d is missing a URL", peer.Domain)
		}
		if _, dup := seen[peer.Domain]; dup {
			return fmt.Errorf("config: duplicate peer entry for domain %d", peer.Domain)
		}
		seen[peer.Domain] = struct{}{}
	}
	return nil
}

// InitialRateInt parses the configured genesis rate. Validate must have
// accepted the config first.
func (c *Config) InitialRateInt() *big.Int {
	rate, ok := new(big.Int).SetString(strings.TrimSpace(c.InitialRate), 10)
	if !ok {
		return big.NewInt(0)
	}
	return rate
}
