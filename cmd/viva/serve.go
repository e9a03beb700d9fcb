package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keshav2232/viva/internal/logging"
	"github.com/keshav2232/viva/internal/runtime"
	"github.com/keshav2232/viva/internal/viva/orchestrator"
	"github.com/keshav2232/viva/internal/viva/prompt"
	"github.com/keshav2232/viva/internal/viva/provider"
	"github.com/keshav2232/viva/internal/viva/server"
	"github.com/keshav2232/viva/internal/viva/session"
	"github.com/keshav2232/viva/internal/viva/tts"
)

func serveCmd() *cobra.Command {
	var port int
	var static string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the viva HTTP API",
		Long:  "Serve the session API, TTS, login and reports. With --static, also serve the frontend build.",
		Run: func(cmd *cobra.Command, args []string) {
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if static != "" {
				cfg.Server.StaticDir = static
			}
			if err := runServe(cmd.Context()); err != nil {
				exitOnError(err)
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	cmd.Flags().StringVar(&static, "static", "", "Frontend build directory to serve")
	return cmd
}

func runServe(parent context.Context) (err error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logging.New("viva")

	shutdown := runtime.NewShutdownManager(10 * time.Second)
	defer func() {
		if serr := shutdown.Shutdown(); serr != nil && err == nil {
			err = serr
		}
	}()

	kind, err := cfg.ProviderKind()
	if err != nil {
		return err
	}
	prov, err := provider.Default.Create(kind,
		provider.WithAPIKey(cfg.Provider.APIKey),
		provider.WithBaseURL(cfg.Provider.BaseURL),
		provider.WithModel(cfg.Provider.Model),
		provider.WithAudioMIME(cfg.Provider.AudioMIME),
	)
	if err != nil {
		return err
	}

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	shutdown.RegisterCloser("storage", st.Close)

	reports, closeArchive, err := openArchive(cfg, st)
	if err != nil {
		return err
	}
	shutdown.RegisterCloser("archive", closeArchive)

	store := session.NewStore(session.WithIdleTTL(cfg.Session.IdleTTL))
	logging.SafeGo("session-janitor", func() {
		store.Run(ctx, 0, func(removed int) {
			log.Info("sessions_expired", map[string]interface{}{"removed": removed, "live": store.Len()})
		})
	})

	opts := []orchestrator.Option{
		orchestrator.WithComposer(prompt.NewComposer(prompt.WithScoldThreshold(cfg.Session.ScoldThreshold))),
		orchestrator.WithGenerateTimeout(cfg.Session.GenerateTimeout),
		orchestrator.WithTranscribeTimeout(cfg.Session.TranscribeTimeout),
	}
	srvOpts := []server.Option{
		server.WithUsers(st),
		server.WithSpeech(tts.New()),
		server.WithStaticDir(cfg.Server.StaticDir),
	}
	if reports != nil {
		opts = append(opts, orchestrator.WithArchive(reports))
		srvOpts = append(srvOpts, server.WithReports(reports))
	}
	orch := orchestrator.New(store, prov, prov, opts...)

	log.Info("viva_starting", map[string]interface{}{
		"version":  version,
		"provider": prov.ID(),
		"archive":  cfg.Storage.Archive,
		"data_dir": st.Path(),
		"idle_ttl": cfg.Session.IdleTTL.String(),
	})
	return server.New(orch, cfg.Addr(), srvOpts...).Serve(ctx)
}
