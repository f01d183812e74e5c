package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"flipsol-keeper/internal/alertpush"
	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/config"
	"flipsol-keeper/internal/events"
	"flipsol-keeper/internal/flipsol"
	"flipsol-keeper/internal/keeper"
	"flipsol-keeper/internal/logging"
	"flipsol-keeper/internal/phase"
	"flipsol-keeper/internal/relay"
	"flipsol-keeper/internal/store"
	httptransport "flipsol-keeper/internal/transport/http"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}
	if err := logging.Init(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("init logging failed")
	}
	kc := cfg.Keeper

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authority, err := loadAuthority(kc)
	if err != nil {
		log.Fatal().Err(err).Msg("load authority keypair failed")
	}
	programID, err := chain.ParsePublicKey(kc.ProgramID)
	if err != nil {
		log.Fatal().Err(err).Str("program_id", kc.ProgramID).Msg("invalid program id")
	}

	client := chain.NewClient(kc.RPCURL,
		chain.WithHTTPClient(&http.Client{Timeout: kc.RPCTimeout}),
		chain.WithCommitment(chain.Commitment(kc.Commitment)),
	)
	program, err := flipsol.NewProgram(client, programID, authority)
	if err != nil {
		log.Fatal().Err(err).Msg("init program client failed")
	}
	log.Info().
		Str("rpc_url", kc.RPCURL).
		Str("program_id", programID.String()).
		Str("authority", authority.PublicKey().String()).
		Str("commitment", kc.Commitment).
		Msg("ledger client ready")

	emitter := events.NewEmitter()
	buffer := events.NewBuffer(kc.EventBufferSize)
	emitter.AddListener(buffer)

	var recorder keeper.Recorder
	var settlements httptransport.SettlementStore
	if kc.PostgresDSN != "" {
		st, err := store.New(ctx, kc.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		recorder, settlements = st, st
	} else {
		log.Info().Msg("POSTGRES_DSN not set, settlement mirror disabled")
	}

	if kc.RedisURL != "" {
		rdb, err := relay.Connect(ctx, kc.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect failed")
		}
		defer rdb.Close()
		rl := relay.New(rdb, kc.RedisChannel, kc.EventBufferSize)
		emitter.AddListener(rl)
		go rl.Run(context.Background())
		defer rl.Close()
		log.Info().Str("channel", kc.RedisChannel).Msg("redis event relay enabled")
	}

	pushCfg, err := alertpush.ConfigFromKeeper(kc)
	if err != nil {
		log.Fatal().Err(err).Msg("load alert push config failed")
	}
	alerts := alertpush.NewManager(pushCfg)
	alerts.Start(ctx)
	defer alerts.Stop()
	emitter.AddListener(alerts)

	clock := phase.NewClock(kc.RoundDuration, kc.BettingWindow)
	distributor := keeper.NewDistributor(program, recorder, emitter, keeper.DistributorConfig{
		Workers:       kc.DistributeWorkers,
		CreditTimeout: kc.CreditTimeout,
		ReadTimeout:   kc.RPCTimeout,
	})
	coordinator := keeper.NewCoordinator(program, emitter, distributor, keeper.Config{
		CheckInterval:   kc.CheckInterval,
		DistributeDelay: kc.DistributeDelay,
		ReadTimeout:     kc.RPCTimeout,
		SubmitTimeout:   kc.ConfirmTimeout,
		ErrorHistory:    kc.ErrorHistory,
		Clock:           clock,
	})
	opener := keeper.NewOpener(coordinator)

	r := httptransport.NewRouter(httptransport.Deps{
		Keeper:               coordinator,
		Opener:               opener,
		Node:                 client,
		Store:                settlements,
		Events:               buffer,
		Clock:                clock,
		AdminAPIKey:          kc.AdminAPIKey,
		DefaultRoundDuration: kc.RoundOpenDuration,
	})
	httptransport.LogRoutes(r)
	if kc.AdminAPIKey == "" {
		log.Warn().Msg("ADMIN_API_KEY not set, admin routes are unauthenticated")
	}

	server := &http.Server{
		Addr:              kc.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", kc.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if err := coordinator.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start keeper failed")
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("http server failed")
	}

	coordinator.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	buffer.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	log.Info().Msg("keeper exited")
}

func loadAuthority(kc config.KeeperConfig) (chain.Keypair, error) {
	if kc.AuthorityKey != "" {
		return chain.KeypairFromJSON(kc.AuthorityKey)
	}
	return chain.LoadKeypairFile(kc.AuthorityKeyPath)
}
