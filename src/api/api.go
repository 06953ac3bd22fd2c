package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/stake-plus/landvote/src/api/config"
	"github.com/stake-plus/landvote/src/api/data"
	"github.com/stake-plus/landvote/src/api/webserver"
	"github.com/stake-plus/landvote/src/discord"
	"github.com/stake-plus/landvote/src/governance"
	"github.com/stake-plus/landvote/src/metrics"
	"github.com/stake-plus/landvote/src/services/core"
	"github.com/stake-plus/landvote/src/services/sweeper"
)

func main() {
	dsn, err := data.GetMySQLDSN()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db := data.MustMySQL(dsn)
	if err := data.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	cfg, err := config.Load(db)
	if err != nil {
		log.Fatalf("%v", err)
	}
	rdb := data.MustRedis(cfg.RedisURL)

	clock := governance.SystemClock{}
	parcels := data.NewParcelStore(db, clock)
	registry := data.NewRegistry(db, parcels)
	hub := webserver.NewHub(cfg.AllowedOrigins)
	recorder := metrics.NewRecorder()
	publishers := []governance.Publisher{data.NewStreamPublisher(rdb), hub, recorder}

	notifier, err := discord.NewNotifier(cfg.DiscordToken, cfg.DiscordChannelID)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if notifier != nil {
		publishers = append(publishers, notifier)
	}

	ctl := governance.NewController(governance.Deps{
		Proposals:  data.NewProposalStore(db),
		Parcels:    parcels,
		Ledger:     data.NewVoteLedger(db),
		Registry:   registry,
		Clock:      clock,
		Policy:     cfg.Policy,
		Catalog:    cfg.Catalog,
		Publishers: publishers,
	})

	router := webserver.New(cfg, webserver.Deps{
		Controller: ctl,
		Registry:   registry,
		Nonces:     webserver.NewRedisNonces(rdb),
		Hub:        hub,
		Rejections: recorder,
		Metrics:    recorder.Handler(),
	})

	manager := core.NewManager(
		webserver.NewServer(cfg, router),
		sweeper.NewModule(ctl, cfg.SweepInterval),
	)
	if notifier != nil {
		notifier.EnableCommands(cfg.DiscordGuildID, ctl)
		if err := manager.Add(notifier); err != nil {
			log.Fatalf("%v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}
	log.Printf("LandVote started (modules=%s quorum=%d tie=%s sweep=%s)",
		strings.Join(manager.Running(), ","), cfg.Policy.Quorum, cfg.Policy.TieBreak, cfg.SweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShut()
	manager.Stop(shutCtx)
	hub.Close()
	if err := rdb.Close(); err != nil {
		log.Printf("redis: close: %v", err)
	}
}
