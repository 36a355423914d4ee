package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samparke/cross-chain-rebase-token/bridge"
	"github.com/samparke/cross-chain-rebase-token/config"
	"github.com/samparke/cross-chain-rebase-token/crypto"
	"github.com/samparke/cross-chain-rebase-token/observability"
	"github.com/samparke/cross-chain-rebase-token/observability/logging"
	"github.com/samparke/cross-chain-rebase-token/rpc"
	"github.com/samparke/cross-chain-rebase-token/storage"
	"github.com/samparke/cross-chain-rebase-token/token"
	"github.com/samparke/cross-chain-rebase-token/transport"
	"github.com/samparke/cross-chain-rebase-token/vault"
)

const rpcTokenEnv = "RBT_RPC_TOKEN"

// treasuryReleaser pays redeemed collateral back out of the domain treasury.
// Settlement against the native asset happens out of band; the daemon records
// the obligation.
type treasuryReleaser struct {
	logger *slog.Logger
}

func (t *treasuryReleaser) Release(recipient crypto.Address, amount *big.Int) error {
	t.logger.Info("collateral released",
		slog.String("recipient", recipient.String()),
		slog.String("amount", amount.String()),
	)
	return nil
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("rebased", cfg.DomainID)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	operatorKey, err := cfg.OperatorKey()
	if err != nil {
		panic(fmt.Sprintf("Failed to load operator key: %v", err))
	}
	operator := operatorKey.PubKey().Address()

	owner, err := crypto.DecodeAddress(cfg.Owner)
	if err != nil {
		panic(fmt.Sprintf("Failed to decode owner address: %v", err))
	}

	roles := token.NewRoles(owner)
	// The operator identity performs vault mints, bridge mints and burns.
	if err := roles.Grant(owner, token.RoleMinter, operator); err != nil {
		panic(fmt.Sprintf("Failed to grant minter role: %v", err))
	}
	for _, minter := range cfg.Minters {
		addr, err := crypto.DecodeAddress(minter)
		if err != nil {
			panic(fmt.Sprintf("Failed to decode minter address %q: %v", minter, err))
		}
		if err := roles.Grant(owner, token.RoleMinter, addr); err != nil {
			panic(fmt.Sprintf("Failed to grant minter role: %v", err))
		}
	}
	if controller := cfg.RateController; controller != "" {
		addr, err := crypto.DecodeAddress(controller)
		if err != nil {
			panic(fmt.Sprintf("Failed to decode rate controller address: %v", err))
		}
		if err := roles.Grant(owner, token.RoleRateController, addr); err != nil {
			panic(fmt.Sprintf("Failed to grant rate controller role: %v", err))
		}
	}

	recorder := observability.NewRecorder(logger)

	state := token.NewState(db)
	ledger := token.NewLedger(state, roles)
	ledger.SetEmitter(recorder)

	authority := token.NewAuthority(state, roles)
	authority.SetEmitter(recorder)
	if err := authority.Initialise(cfg.InitialRateInt()); err != nil {
		panic(fmt.Sprintf("Failed to initialise global rate: %v", err))
	}

	processed := bridge.NewProcessedLedger(db)
	br := bridge.New(ledger, processed, cfg.DomainID, operator, cfg.AllowedOrigins)
	br.SetEmitter(recorder)
	br.SetTransport(transport.NewClient(cfg.DomainID, cfg.PeerURLs(), []byte(cfg.RelaySecret), cfg.RelayFee))

	v := vault.New(ledger, operator, &treasuryReleaser{logger: logger})

	authToken := cfg.RPCAuthToken
	if envToken := os.Getenv(rpcTokenEnv); envToken != "" {
		authToken = envToken
	}

	errCh := make(chan error, 3)

	server := rpc.NewServer(ledger, authority, v, br, authToken, logger)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()

	if cfg.RelayAddress != "" {
		relay := transport.NewHandler(br, transport.ServerConfig{
			Secret: []byte(cfg.RelaySecret),
			MinFee: cfg.RelayFee,
		})
		go func() {
			logger.Info("starting relay listener", slog.String("addr", cfg.RelayAddress))
			errCh <- http.ListenAndServe(cfg.RelayAddress, relay)
		}()
	}

	if cfg.MetricsAddress != "" {
		go func() {
			logger.Info("starting metrics listener", slog.String("addr", cfg.MetricsAddress))
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			errCh <- http.ListenAndServe(cfg.MetricsAddress, mux)
		}()
	}

	logger.Info("rebased started",
		slog.Uint64("domain", cfg.DomainID),
		slog.String("operator", operator.String()),
	)

	if err := <-errCh; err != nil {
		logger.Error("listener failed", slog.Any("error", err))
		os.Exit(1)
	}
}
