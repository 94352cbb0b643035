package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/delivery-sagas/internal/bus"
	"github.com/jcmexdev/delivery-sagas/internal/courier"
	"github.com/jcmexdev/delivery-sagas/internal/gateway/httpx"
	"github.com/jcmexdev/delivery-sagas/internal/merchant"
	"github.com/jcmexdev/delivery-sagas/internal/messages"
	"github.com/jcmexdev/delivery-sagas/internal/notification"
	"github.com/jcmexdev/delivery-sagas/internal/orchestrator"
	instsqlite "github.com/jcmexdev/delivery-sagas/internal/orchestrator/store/sqlite"
	logsqlite "github.com/jcmexdev/delivery-sagas/internal/orchestrator/sagalog/sqlite"
	"github.com/jcmexdev/delivery-sagas/internal/payment"
	"github.com/jcmexdev/delivery-sagas/internal/pkg/config"
	"github.com/jcmexdev/delivery-sagas/internal/pkg/idempotency"
	"github.com/jcmexdev/delivery-sagas/internal/pkg/telemetry"
	"github.com/shopspring/decimal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("SAGA_CONFIG"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	telemetry.InitLogger(parseLevel(cfg.LogLevel))

	shutdown, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	for _, p := range []string{cfg.InstancesDBPath, cfg.SagaLogDBPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			slog.Error("failed to create data directory", "path", p, "error", err)
			os.Exit(1)
		}
	}

	store, err := instsqlite.Open(cfg.InstancesDBPath)
	if err != nil {
		slog.Error("failed to open instance store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	logRepo, err := logsqlite.Open(cfg.SagaLogDBPath)
	if err != nil {
		slog.Error("failed to open saga log", "error", err)
		os.Exit(1)
	}
	defer logRepo.Close()

	var guard idempotency.Guard
	if cfg.RedisAddr != "" {
		guard = idempotency.NewRedisGuard(cfg.RedisAddr, cfg.GuardTTL)
	} else {
		guard = idempotency.NewMemoryGuard(cfg.GuardTTL)
	}

	b := bus.New(
		bus.WithWorkers(cfg.BusWorkers),
		bus.WithAttempts(cfg.BusAttempts),
		bus.WithQueueSize(cfg.BusQueueSize),
	)

	orch := orchestrator.New(store, b,
		orchestrator.WithTransitionLog(logRepo),
		orchestrator.WithStepTimeout(cfg.StepTimeout),
		orchestrator.WithDeliveryFee(cfg.DeliveryFee),
	)

	merchantSvc := merchant.NewService(seedMerchants(), guard, b)
	paymentSvc := payment.NewService(payment.NewMemoryStore(), guard, b, cfg.PaymentLimit, cfg.PaymentTimeout)
	courierSvc := courier.NewService(seedCouriers(), guard, b)
	notifySvc := notification.NewService(b)

	// Orchestrator consumes the initiating command and every response.
	for _, m := range []messages.Message{
		messages.SubmitOrder{},
		messages.MerchantValidationResult{},
		messages.PaymentResult{},
		messages.CourierAllocationResult{},
		messages.NotificationResult{},
		messages.MerchantOrderCancelled{},
		messages.PaymentReversed{},
		messages.CourierReleased{},
		messages.StepTimedOut{},
	} {
		b.Register(m.Kind(), orch.HandleMessage)
	}

	// Participants consume the commands.
	b.Register(messages.ValidateMerchantOrder{}.Kind(), merchantSvc.HandleValidateOrder)
	b.Register(messages.CancelMerchantOrder{}.Kind(), merchantSvc.HandleCancelOrder)
	b.Register(messages.ProcessPayment{}.Kind(), paymentSvc.HandleProcessPayment)
	b.Register(messages.ReversePayment{}.Kind(), paymentSvc.HandleReversePayment)
	b.Register(messages.AllocateCourier{}.Kind(), courierSvc.HandleAllocateCourier)
	b.Register(messages.ReleaseCourier{}.Kind(), courierSvc.HandleReleaseCourier)
	b.Register(messages.NotifyCustomer{}.Kind(), notifySvc.HandleNotifyCustomer)

	router := httpx.NewRouter(httpx.NewHandler(b, store))
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("message bus running", "workers", cfg.BusWorkers)
		err := b.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		slog.Info("gateway running", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("orchestrator exited with error", "error", err)
		os.Exit(1)
	}
}

// seedMerchants returns the development merchant catalog.
func seedMerchants() *merchant.MemoryStore {
	return merchant.NewMemoryStore(
		&merchant.Merchant{
			ID:   "merchant_1",
			Name: "Cantina da Praça",
			Open: true,
			Prices: map[string]decimal.Decimal{
				"prod_1": decimal.RequireFromString("24.90"),
				"prod_2": decimal.RequireFromString("15.00"),
				"prod_3": decimal.RequireFromString("8.50"),
			},
			PrepBaseMinutes:    15,
			PrepPerItemMinutes: 2,
		},
		&merchant.Merchant{
			ID:   "merchant_2",
			Name: "Burger do Centro",
			Open: false,
			Prices: map[string]decimal.Decimal{
				"prod_9": decimal.RequireFromString("32.00"),
			},
			PrepBaseMinutes:    20,
			PrepPerItemMinutes: 3,
		},
	)
}

// seedCouriers returns the development courier pool.
func seedCouriers() *courier.MemoryStore {
	return courier.NewMemoryStore(
		&courier.Courier{ID: "courier_1", Name: "Ana", ETAMinutes: 15},
		&courier.Courier{ID: "courier_2", Name: "Bruno", ETAMinutes: 20},
		&courier.Courier{ID: "courier_3", Name: "Carla", ETAMinutes: 25},
	)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
