package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"atlaschain/config"
	"atlaschain/consensus/bft"
	"atlaschain/core"
	"atlaschain/ledger"
	"atlaschain/network"
	"atlaschain/observability/logging"
	"atlaschain/rpc"
	"atlaschain/slashing"
	"atlaschain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis manifest (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var logOpts []logging.Option
	if cfg.LogFile != "" {
		var out io.Writer = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
		}
		logOpts = append(logOpts, logging.WithWriter(out))
	}
	logger := logging.Setup("atlasd", os.Getenv("ATLAS_ENV"), logOpts...).With(slog.String("run_id", uuid.NewString()))

	key, err := cfg.PrivateKey()
	if err != nil {
		logger.Error("invalid validator key", slog.Any("error", err))
		os.Exit(1)
	}

	genesisPath := cfg.GenesisFile
	if *genesisFlag != "" {
		genesisPath = *genesisFlag
	}
	var gen *ledger.Genesis
	if genesisPath != "" {
		if gen, err = ledger.LoadGenesis(genesisPath); err != nil {
			logger.Error("failed to load genesis", slog.Any("error", err))
			os.Exit(1)
		}
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "index"))
	if err != nil {
		logger.Error("failed to open index database", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := ledger.Open(cfg.DataDir, db, gen, logger)
	if err != nil {
		logger.Error("failed to open ledger", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	evidence, err := slashing.OpenEvidenceStore(filepath.Join(cfg.DataDir, "evidence.db"))
	if err != nil {
		logger.Error("failed to open evidence store", slog.Any("error", err))
		os.Exit(1)
	}
	defer evidence.Close()

	peers := network.NewPeerManager()
	for _, peer := range cfg.BootstrapPeers {
		peers.Register(peer, network.PeerStats{Address: peer})
	}

	prepare, precommit, commit := cfg.Timeouts()
	engine, err := bft.NewEngine(
		peers,
		bft.QuorumPolicy{Fraction: cfg.QuorumFraction, MinVoters: cfg.QuorumMinVoters},
		store,
		bft.WithTimeouts(bft.PhaseTimeouts{Prepare: prepare, PreCommit: precommit, Commit: commit}),
		bft.WithSlashingSink(evidence),
		bft.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build consensus engine", slog.Any("error", err))
		os.Exit(1)
	}

	// The transport behind the publisher is a collaborator; a loopback
	// keeps single-node deployments self-contained.
	publisher := network.NewLoopbackPublisher()
	node := core.NewNode(key, engine, store, peers, publisher, core.WithNodeLogger(logger))

	node.Start(250 * time.Millisecond)
	defer node.Stop()
	logger.Info("validator online",
		slog.String("node", node.ID()),
		slog.Uint64("height", store.Height()),
		slog.String("state_root", store.StateRoot()),
	)

	server := rpc.NewServer(node, logger)
	if err := server.ListenAndServe(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
