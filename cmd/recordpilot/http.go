package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/recordpilot/internal/httpapi"
	rpserver "github.com/HendryAvila/recordpilot/internal/server"
	"github.com/HendryAvila/recordpilot/internal/whatsapp"
)

var (
	streamDelay   time.Duration
	evictInterval time.Duration
)

var httpCmd = &cobra.Command{
	Use:   "http",
	Short: "Serve the web chat and the WhatsApp webhook",
	Long: `Serve the HTTP API:

  GET  /health               liveness
  POST /api/chat             one message, JSON answer
  POST /api/chat/stream      one message, answer as server-sent events
  POST /api/chat/reset       forget a conversation
  POST /api/whatsapp/send    send a WhatsApp message
  GET  /webhook              WhatsApp subscription handshake
  POST /webhook              WhatsApp deliveries

The WhatsApp routes are mounted when whatsapp.enabled is set.`,
	Args: cobra.NoArgs,
	RunE: runHTTP,
}

func init() {
	httpCmd.Flags().DurationVar(&streamDelay, "stream-delay", 50*time.Millisecond,
		"pause between streamed words")
	httpCmd.Flags().DurationVar(&evictInterval, "evict-interval", 10*time.Minute,
		"how often idle conversations are dropped")
}

func runHTTP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireLLM(); err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()
	gin.SetMode(cfg.HTTP.Mode)

	b, cleanup, err := rpserver.Open(backendOptions(cfg, log))
	if err != nil {
		return err
	}
	defer cleanup()

	var rdb redis.UniversalClient
	client, err := newRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
		rdb = client
	}

	mgr, err := newManager(ctx, cfg, b, rdb, log)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	rc := httpapi.RouterConfig{
		Health: httpapi.NewHealthHandler(),
		Chat:   httpapi.NewChatHandler(mgr, streamDelay, log),
		Log:    log,
	}

	if cfg.WhatsApp.Enabled {
		wa, err := whatsapp.New(log, whatsapp.Config{
			APIBase:       cfg.WhatsApp.APIBase,
			APIVersion:    cfg.WhatsApp.APIVersion,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			AccessToken:   cfg.WhatsApp.AccessToken,
		})
		if err != nil {
			return err
		}

		var dedup whatsapp.Deduper = whatsapp.NewMemoryDeduper(cfg.DedupTTL())
		if rdb != nil {
			dedup = whatsapp.NewRedisDeduper(rdb, cfg.DedupTTL())
		}
		svc := whatsapp.NewService(wa, mgr, dedup, whatsapp.ServiceConfig{
			Region: cfg.WhatsApp.DefaultRegion,
		}, log)

		rc.WhatsApp = httpapi.NewWhatsAppHandler(wa, svc, httpapi.WhatsAppConfig{
			VerifyToken: cfg.WhatsApp.VerifyToken,
			AppSecret:   cfg.WhatsApp.AppSecret,
			Region:      cfg.WhatsApp.DefaultRegion,
		}, log)
		g.Go(func() error { return svc.Run(ctx) })
		log.Info("WhatsApp webhook enabled", "phone_number_id", cfg.WhatsApp.PhoneNumberID)
	}

	srv := httpapi.NewServer(cfg.HTTP.Addr, httpapi.NewRouter(rc), cfg.ShutdownTimeout(), log)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return mgr.Run(ctx, evictInterval) })

	return g.Wait()
}
