package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github/itish2003/tariff/config"
	"github/itish2003/tariff/controller"
	"github/itish2003/tariff/logger"
	"github/itish2003/tariff/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tariff",
		Short:         "Customs tariff advisor over per-country document collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (yaml)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Index the knowledge base and start the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, serve)
			},
		},
		&cobra.Command{
			Use:   "countries",
			Short: "Index the knowledge base and list the available countries",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					if _, err := a.registry.Discover(ctx); err != nil {
						return err
					}
					for _, country := range a.tariff.Countries() {
						fmt.Println(country)
					}
					for country, reason := range a.tariff.Unavailable() {
						fmt.Printf("%s (unavailable: %s)\n", country, reason)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Re-scan the knowledge base and report added countries",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					report, err := a.tariff.Refresh(ctx)
					if err != nil {
						return err
					}
					fmt.Println(report.Message)
					return nil
				})
			},
		},
		askCommand(&configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func askCommand(configPath *string) *cobra.Command {
	var (
		country string
		query   string
		k       int
	)
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run one tariff retrieval against a country's documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				if _, err := a.registry.Discover(ctx); err != nil {
					return err
				}
				result, err := a.tariff.Query(ctx, query, country, k)
				if err != nil {
					return err
				}
				fmt.Println(result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "Country to search")
	cmd.Flags().StringVar(&query, "query", "", "Question about tariffs or customs regulations")
	cmd.Flags().IntVar(&k, "k", 0, "Number of fragments (default from config)")
	_ = cmd.MarkFlagRequired("country")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func withApp(ctx context.Context, configPath string, run func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return run(ctx, a)
}

func serve(ctx context.Context, a *app) error {
	added, err := a.registry.Discover(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("knowledge base indexed",
		zap.Strings("added", added),
		zap.Strings("available", a.registry.Countries()))

	if a.cfg.KnowledgeBase.Watch {
		watcher := services.NewDirectoryWatcher(a.cfg.KnowledgeBase.Path, a.cfg.KnowledgeBase.Extensions,
			a.cfg.KnowledgeBase.WatchDebounce, func(ctx context.Context) error {
				report, err := a.tariff.Refresh(ctx)
				if err != nil {
					return err
				}
				zap.L().Info("knowledge base refreshed", zap.Strings("added", report.Added))
				return nil
			})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				zap.L().Error("watcher exited", zap.Error(err))
			}
		}()
	}

	var chat controller.ChatService
	if a.chat != nil {
		chat = a.chat
	}
	tariffController := controller.NewTariffController(chat, a.tariff)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), controller.RequestLogger(zap.L()), controller.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "Tariff API",
			"countries": len(a.registry.Countries()),
		})
	})
	tariffController.Register(router.Group("/api/v1"))

	srv := &http.Server{Addr: a.cfg.Server.Addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("tariff API listening", zap.String("addr", displayAddr(a.cfg.Server.Addr)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	zap.L().Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
