package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/turtacn/DiscourseLens/internal/config"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	apihttp "github.com/turtacn/DiscourseLens/internal/interfaces/http"
	"github.com/turtacn/DiscourseLens/internal/interfaces/http/handlers"
	"github.com/turtacn/DiscourseLens/internal/interfaces/http/middleware"
)

type serveOptions struct {
	port     int
	clusters string
	cors     []string
}

func newServeCmd() *cobra.Command {
	o := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP API",
		Long: "Serve exposes the analysis service over HTTP: POST /api/v1/analyses,\n" +
			"GET/PUT /api/v1/clusters, PUT /api/v1/topics, /healthz, /readyz and /metrics.\n" +
			"The cluster file and the config file are reloaded when they change.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, o)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&o.port, "port", "p", 0, "listen port (overrides server.port)")
	f.StringVar(&o.clusters, "clusters", "", "cluster definition file (overrides clusters.file)")
	f.StringSliceVar(&o.cors, "cors-origin", nil, "allowed CORS origins, * or *.example.com patterns")
	return cmd
}

func runServe(cmd *cobra.Command, o *serveOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	log := cliCtx.Logger
	if o.port != 0 {
		cfg.Server.Port = o.port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, o.clusters, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	analysisHandler := handlers.NewAnalysisHandler(rt.service, analysisOptions(cfg.Analysis), log)

	stopWatch, err := rt.watchClusters(ctx, cfg, o.clusters)
	if err != nil {
		return err
	}
	defer stopWatch()

	if cliCtx.ConfigFile != "" {
		err := config.Watch(cliCtx.ConfigFile, func(next *config.Config) {
			analysisHandler.SetDefaults(analysisOptions(next.Analysis))
			log.Info("analysis defaults reloaded", logging.String("path", cliCtx.ConfigFile))
		}, func(err error) {
			log.Warn("config reload rejected, keeping previous settings", logging.Err(err))
		})
		if err != nil {
			log.Warn("config watch unavailable", logging.Err(err))
		}
	}

	gin.SetMode(cfg.Server.Mode)
	routerCfg := apihttp.RouterConfig{
		AnalysisHandler:  analysisHandler,
		ClusterHandler:   handlers.NewClusterHandler(rt.service),
		HealthHandler:    handlers.NewHealthHandler(Version, rt.checkers...),
		Logging:          middleware.DefaultLoggingConfig(),
		MaxBodySize:      cfg.Server.MaxBodySize,
		Logger:           log,
		Metrics:          rt.metrics,
		MetricsCollector: rt.collector,
	}
	if cfg.Server.RateLimitRPS > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.Server.RateLimitRPS
		rl.BurstSize = cfg.Server.RateLimitBurst
		routerCfg.RateLimit = &rl
	}
	if len(o.cors) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = o.cors
		routerCfg.CORS = &corsCfg
	}

	srv := apihttp.NewServer(apihttp.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, apihttp.NewRouter(routerCfg), log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// ctx is already cancelled; Stop bounds the drain by ShutdownTimeout.
	return srv.Stop(context.Background())
}
