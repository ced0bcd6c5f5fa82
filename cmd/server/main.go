package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bidflow/internal/config"
	"bidflow/internal/consensus"
	"bidflow/internal/handler"
	"bidflow/internal/invoice"
	"bidflow/internal/port"
	"bidflow/internal/provider"
	_ "bidflow/internal/provider/claude"
	_ "bidflow/internal/provider/gemini"
	_ "bidflow/internal/provider/openai"
	"bidflow/internal/repository/postgres"
	"bidflow/internal/router"
	"bidflow/internal/service"
	s3storage "bidflow/internal/storage/s3"
)

const shutdownTimeout = 30 * time.Second

// @title						Bidflow API
// @version					1.0
// @description				Multi-model plan analysis and invoice extraction for construction bids.
// @BasePath					/api/v1
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	analysisRepo := postgres.NewAnalysisRepo(db)
	invoiceRepo := postgres.NewInvoiceRepo(db)

	// Initialize storage; plan sheets by key and storage exports need a bucket
	var storage port.ObjectStorage
	if cfg.S3.Bucket != "" {
		storage, err = s3storage.NewS3Client(&cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	} else {
		zap.L().Warn("no S3 bucket configured; s3_key images and storage exports are disabled")
	}

	// Initialize model roster
	members, err := consensus.MembersFromRoster(&cfg.Providers, cfg.Roster, 0)
	if err != nil {
		return err
	}
	engine, err := consensus.NewEngine(members, consensus.FromConfig(cfg.Consensus))
	if err != nil {
		return fmt.Errorf("failed to build consensus engine: %w", err)
	}

	chain, err := provider.ChainFromRoster(&cfg.Providers, cfg.Roster, cfg.Invoice.Chain())
	if err != nil {
		return fmt.Errorf("failed to build invoice provider chain: %w", err)
	}
	extractor := invoice.NewExtractor(chain, "", invoice.OptionsFromConfig(cfg.Invoice)...)

	// Initialize services
	analysisSvc := service.NewAnalysisService(engine, analysisRepo, storage, &cfg.S3)
	invoiceSvc := service.NewInvoiceService(extractor, invoiceRepo)

	// Setup router
	r := router.Setup(router.Handlers{
		Analysis: handler.NewAnalysisHandler(analysisSvc),
		Invoice:  handler.NewInvoiceHandler(invoiceSvc),
		Tools:    handler.NewToolsHandler(),
		Health:   handler.NewHealthHandler(db),
	}, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server starting",
			zap.String("addr", srv.Addr),
			zap.Int("roster_size", len(members)),
			zap.Strings("invoice_chain", cfg.Invoice.Chain()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
