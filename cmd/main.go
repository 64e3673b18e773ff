package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/clicrdv-admin/omnipay/internal/adapter"
	"github.com/clicrdv-admin/omnipay/internal/config"
	"github.com/clicrdv-admin/omnipay/internal/gateway"
	"github.com/clicrdv-admin/omnipay/internal/middleware"
	"github.com/clicrdv-admin/omnipay/internal/signer"
	"github.com/clicrdv-admin/omnipay/internal/store"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Signer ---
	sg, err := signer.New(cfg.Omnipay.Secret)
	if err != nil {
		logger.Fatal("Failed to create signer", zap.Error(err))
	}

	// --- Correlation store ---
	st := newStore(cfg, logger)

	// --- Gateways ---
	registry := gateway.NewRegistry()
	if err := registerGateways(registry, cfg); err != nil {
		logger.Fatal("Failed to register gateways", zap.Error(err))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	e.Pre(middleware.Dispatch(middleware.Config{
		BasePath:     cfg.Omnipay.BasePath,
		BaseURI:      cfg.Omnipay.BaseURI,
		CookieName:   cfg.Omnipay.CookieName,
		CookieSecure: cfg.Server.Env == "production",
		SessionTTL:   cfg.Omnipay.SessionTTL,
	}, registry, st, sg, logger))

	// The wrapped application: the dispatcher decorates callback and IPN
	// requests with the normalized result before they reach these routes.
	e.GET(cfg.Omnipay.BasePath+"/:uid/callback", callbackHandler(logger))
	e.POST(cfg.Omnipay.BasePath+"/:uid/ipn", ipnHandler(logger))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting omnipay server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newStore builds the configured correlation store, falling back to the
// in-memory store when a backend is unreachable.
func newStore(cfg *config.Config, logger *zap.Logger) store.Store {
	switch cfg.Omnipay.StoreDriver {
	case "redis":
		st, err := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, cfg.Omnipay.SessionTTL)
		if err != nil {
			logger.Warn("Redis unavailable for correlation store, using in-memory fallback", zap.Error(err))
		}
		return st
	case "mysql":
		db, err := config.NewDatabase(&cfg.Database)
		if err != nil {
			logger.Warn("Database unavailable for correlation store, using in-memory fallback", zap.Error(err))
			return store.NewMemoryStore(cfg.Omnipay.SessionTTL)
		}
		st, err := store.NewGormStore(db, cfg.Omnipay.SessionTTL)
		if err != nil {
			logger.Warn("Correlation table migration failed, using in-memory fallback", zap.Error(err))
			return store.NewMemoryStore(cfg.Omnipay.SessionTTL)
		}
		return st
	default:
		return store.NewMemoryStore(cfg.Omnipay.SessionTTL)
	}
}

// registerGateways wires every gateway whose credentials are configured,
// plus a sandbox gateway for development environments.
func registerGateways(registry *gateway.Registry, cfg *config.Config) error {
	if cfg.Gateways.Mangopay.ClientID != "" {
		ad, err := adapter.NewMangopayAdapter(
			cfg.Gateways.Mangopay.ClientID,
			cfg.Gateways.Mangopay.Passphrase,
			cfg.Gateways.Mangopay.WalletID,
			cfg.Gateways.Mangopay.Sandbox,
		)
		if err != nil {
			return err
		}
		if err := registry.Push(gateway.Config{UID: "mangopay", Adapter: ad}); err != nil {
			return err
		}
	}

	if cfg.Gateways.BitPay.APIKey != "" {
		ad, err := adapter.NewBitPayAdapter(cfg.Gateways.BitPay.APIKey, cfg.Gateways.BitPay.Sandbox)
		if err != nil {
			return err
		}
		if err := registry.Push(gateway.Config{UID: "bitpay", Adapter: ad}); err != nil {
			return err
		}
	}

	if cfg.Gateways.Comnpay.TPEID != "" {
		ad, err := adapter.NewComnpayAdapter(
			cfg.Gateways.Comnpay.TPEID,
			cfg.Gateways.Comnpay.SecretKey,
			cfg.Gateways.Comnpay.Sandbox,
		)
		if err != nil {
			return err
		}
		if err := registry.Push(gateway.Config{UID: "comnpay", Adapter: ad}); err != nil {
			return err
		}
	}

	if cfg.Server.Env != "production" {
		if err := registry.Push(gateway.Config{UID: "sandbox", Adapter: adapter.NewSandboxAdapter("sandbox")}); err != nil {
			return err
		}
	}

	return nil
}

// callbackHandler renders the normalized payment result for the user.
func callbackHandler(logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, ok := middleware.ResponseFrom(c)
		if !ok {
			return c.String(http.StatusNotFound, "no payment response")
		}

		if !res.Success {
			logger.Warn("payment failed",
				zap.String("gateway", c.Param("uid")),
				zap.String("error", string(res.Error)))
		}

		return c.JSON(http.StatusOK, res)
	}
}

// ipnHandler acknowledges provider notifications.
func ipnHandler(logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, ok := middleware.ResponseFrom(c)
		if !ok {
			return c.NoContent(http.StatusNotFound)
		}

		logger.Info("payment notification",
			zap.String("gateway", c.Param("uid")),
			zap.Bool("success", res.Success),
			zap.Int("amount", res.Amount),
			zap.String("transaction_id", res.TransactionID))

		return c.NoContent(http.StatusOK)
	}
}
