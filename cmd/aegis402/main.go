// Command aegis402 runs the clearinghouse: it loads configuration, wires
// the ledger/credit/reputation/facilitator adapters, starts the Chain
// Watcher and Deadline Scheduler loops, and serves the HTTP API until
// terminated.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/aegis402/clearinghouse/config"
	"github.com/aegis402/clearinghouse/core"
	"github.com/aegis402/clearinghouse/creditmgr"
	"github.com/aegis402/clearinghouse/facilitator"
	"github.com/aegis402/clearinghouse/httpapi"
	"github.com/aegis402/clearinghouse/ledger"
	"github.com/aegis402/clearinghouse/registry"
	"github.com/aegis402/clearinghouse/reputation"
	"github.com/aegis402/clearinghouse/scheduler"
	"github.com/aegis402/clearinghouse/watcher"
)

func main() {
	log.Printf("level=info component=bootstrap msg=\"starting aegis402\"")

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rpc dial failed\" err=%v", err)
	}
	log.Printf("level=info component=bootstrap msg=\"rpc connected\" url=%s", cfg.RPCURL)

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"private key parse failed\" err=%v", err)
	}
	clearinghouseAddress := crypto.PubkeyToAddress(privateKey.PublicKey)

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"chain id lookup failed\" err=%v", err)
	}

	signer := func(ctx context.Context) (*bind.TransactOpts, error) {
		opts, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
		if err != nil {
			return nil, err
		}
		opts.Context = ctx
		return opts, nil
	}

	creditAddr := common.HexToAddress(cfg.CreditManagerAddress)
	assetAddr := common.HexToAddress(cfg.AssetAddress)

	credit, err := creditmgr.New(client, creditAddr, assetAddr, signer, 0)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"credit manager adapter init failed\" err=%v", err)
	}
	ledgerAdapter := ledger.New(client, assetAddr, 0)

	rep := reputation.NewCached(reputation.NewStub())

	fac := facilitator.NewIdempotent(facilitator.New(cfg.FacilitatorURL, cfg.FacilitatorAPIKey))

	reg := registry.New()

	minStake, err := cfg.MinStake()
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"min_stake_amount parse failed\" err=%v", err)
	}
	_ = minStake // enforced by the credit contract itself at subscribe_for time

	coreCfg := core.DefaultConfig()
	coreCfg.ClearinghouseAddress = clearinghouseAddress.Hex()
	coreCfg.DefaultDeadline = time.Duration(cfg.DefaultDeadlineSeconds) * time.Second

	var c *core.Core
	w := watcher.New(ledgerAdapter, nil, 0, logger)
	c = core.New(reg, ledgerAdapter, credit, rep, w, coreCfg, logger)
	w.SetObserver(c)

	recoveryCtx, cancelRecovery := context.WithTimeout(context.Background(), 2*time.Minute)
	head, err := ledgerAdapter.HeadBlock(recoveryCtx)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"head_block lookup failed, skipping recovery\" err=%v", err)
	} else {
		result := c.Recovery(recoveryCtx, cfg.StartBlock, head)
		w.SeedLastBlock(head)
		log.Printf("level=info component=bootstrap msg=\"recovery complete\" merchants_seeded=%d payments_recovered=%d events_skipped=%d",
			result.MerchantsSeeded, result.PaymentsRecovered, result.EventsSkipped)
	}
	cancelRecovery()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)
	go scheduler.New(c, 0, logger).Run(ctx)

	reqCfg := httpapi.RequirementsConfig{
		Network:           cfg.Network,
		Asset:             cfg.AssetAddress,
		PayTo:             clearinghouseAddress.Hex(),
		MinStakeAmount:    cfg.MinStakeAmount,
		SlashBondAmount:   cfg.SlashBondAmount,
		MaxTimeoutSeconds: int(cfg.DefaultDeadlineSeconds),
	}
	api := httpapi.New(c, fac, reqCfg, cfg.CreditManagerAddress)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: httpapi.NewRouter(api),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", server.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=bootstrap msg=\"shutdown started\"")

	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=bootstrap msg=\"shutdown complete\"")
}
