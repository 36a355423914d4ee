package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/samparke/cross-chain-rebase-token/crypto"
)

// Peer names a remote rebase domain reachable through the relay transport.
type Peer struct {
	Domain uint64 `toml:"Domain"`
	URL    string `toml:"URL"`
}

type Config struct {
	DomainID        uint64   `toml:"DomainID"`
	RPCAddress      string   `toml:"RPCAddress"`
	RelayAddress    string   `toml:"RelayAddress"`
	MetricsAddress  string   `toml:"MetricsAddress"`
	DataDir         string   `toml:"DataDir"`
	OperatorKeyPath string   `toml:"OperatorKeyPath"`
	Owner           string   `toml:"Owner"`
	Minters         []string `toml:"Minters"`
	RateController  string   `toml:"RateController"`
	InitialRate     string   `toml:"InitialRate"`
	AllowedOrigins  []uint64 `toml:"AllowedOrigins"`
	Peers           []Peer   `toml:"Peers"`
	RelaySecret     string   `toml:"RelaySecret"`
	RelayFee        uint64   `toml:"RelayFee"`
	RPCAuthToken    string   `toml:"RPCAuthToken"`
}

// Load reads the configuration at path, creating a default file (and operator
// key) on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.OperatorKeyPath == "" {
		cfg.OperatorKeyPath = defaultOperatorKeyPath(path)
	}
	if cfg.Minters == nil {
		cfg.Minters = []string{}
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []uint64{}
	}
	if cfg.Peers == nil {
		cfg.Peers = []Peer{}
	}
	if strings.TrimSpace(cfg.InitialRate) == "" {
		cfg.InitialRate = "0"
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PeerURLs flattens the peer table into the domain-to-endpoint map the relay
// client consumes.
func (c *Config) PeerURLs() map[uint64]string {
	peers := make(map[uint64]string, len(c.Peers))
	for _, peer := range c.Peers {
		peers[peer.Domain] = peer.URL
	}
	return peers
}

// OperatorKey loads the hex-encoded operator key referenced by the config,
// generating one on first use.
func (c *Config) OperatorKey() (*crypto.PrivateKey, error) {
	raw, err := os.ReadFile(c.OperatorKeyPath)
	if os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return nil, genErr
		}
		if saveErr := saveOperatorKey(c.OperatorKeyPath, key); saveErr != nil {
			return nil, saveErr
		}
		return key, nil
	}
	if err != nil {
		return nil, err
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("config: operator key at %s is not hex: %w", c.OperatorKeyPath, err)
	}
	return crypto.PrivateKeyFromBytes(decoded)
}

// createDefault creates and saves a default configuration file alongside a
// freshly generated operator key. The operator starts as owner, minter and
// rate controller so a single-node deployment works out of the box.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keyPath := defaultOperatorKeyPath(path)
	if err := saveOperatorKey(keyPath, key); err != nil {
		return nil, err
	}
	operator := key.PubKey().Address().String()

	cfg := &Config{
		DomainID:        1,
		RPCAddress:      ":8545",
		RelayAddress:    ":8640",
		MetricsAddress:  ":9090",
		DataDir:         "./rbt-data",
		OperatorKeyPath: keyPath,
		Owner:           operator,
		Minters:         []string{operator},
		RateController:  operator,
		InitialRate:     "500000000",
		AllowedOrigins:  []uint64{},
		Peers:           []Peer{},
		RelayFee:        0,
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func saveOperatorKey(path string, key *crypto.PrivateKey) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	encoded := hex.EncodeToString(key.Bytes()) + "\n"
	return os.WriteFile(path, []byte(encoded), 0o600)
}

func defaultOperatorKeyPath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.key")
}
