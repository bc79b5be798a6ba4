package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
	"github.com/xenking/pricing-engine/internal/domain/order"
	"github.com/xenking/pricing-engine/internal/domain/pricing"
	"github.com/xenking/pricing-engine/internal/domain/tax"
	"github.com/xenking/pricing-engine/internal/modules"
	"github.com/xenking/pricing-engine/internal/storage/postgres"
	"github.com/xenking/pricing-engine/pkg/health"
	"github.com/xenking/pricing-engine/pkg/httpmiddleware"
)

// Engine bundles the resolved strategies and the order creator. It is the
// entry point embedding applications use to price and create orders.
type Engine struct {
	Pricing  pricing.Module
	Tax      tax.Module
	Supplier catalog.SupplierModule
	Creator  *order.Creator

	PricingModules  *modules.Registry[pricing.Module]
	TaxModules      *modules.Registry[tax.Module]
	SupplierModules *modules.Registry[catalog.SupplierModule]
}

// NewSource starts a provisional order for the shop using the engine's
// resolved tax module.
func (e *Engine) NewSource(shop catalog.Shop) *order.Source {
	return order.NewSource(shop, e.Tax)
}

// NewEngine wires repositories, registers the built-in modules and
// resolves the strategies named in the configuration.
func NewEngine(cfg *Config, pool *pgxpool.Pool, lg *zap.Logger) (*Engine, error) {
	shopProductRepo := postgres.NewShopProductRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	supplierRepo := postgres.NewSupplierRepository(pool)
	taxRuleRepo := postgres.NewTaxRuleRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	pricingModules := modules.NewRegistry[pricing.Module]()
	pricingModules.Register("catalog", func() pricing.Module {
		return pricing.NewCatalogModule(shopProductRepo)
	})

	taxModules := modules.NewRegistry[tax.Module]()
	taxModules.Register("rule_based", func() tax.Module {
		return tax.NewRuleBasedModule(taxRuleRepo)
	})

	supplierModules := modules.NewRegistry[catalog.SupplierModule]()
	supplierModules.Register("simple", func() catalog.SupplierModule {
		return catalog.SimpleSupplierModule{}
	})

	pricingModule, err := pricingModules.Resolve(cfg.Engine.PricingModule)
	if err != nil {
		return nil, errors.Wrap(err, "resolve pricing module")
	}
	taxModule, err := taxModules.Resolve(cfg.Engine.TaxModule)
	if err != nil {
		return nil, errors.Wrap(err, "resolve tax module")
	}
	supplierModule, err := supplierModules.Resolve(cfg.Engine.SupplierModule)
	if err != nil {
		return nil, errors.Wrap(err, "resolve supplier module")
	}

	creator := order.NewCreator(orderRepo, productRepo, shopProductRepo, supplierRepo, supplierModule, lg)

	return &Engine{
		Pricing:         pricingModule,
		Tax:             taxModule,
		Supplier:        supplierModule,
		Creator:         creator,
		PricingModules:  pricingModules,
		TaxModules:      taxModules,
		SupplierModules: supplierModules,
	}, nil
}

// Run creates all dependencies, starts the ops HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	engine, err := NewEngine(cfg, pool, lg)
	if err != nil {
		return errors.Wrap(err, "wire engine")
	}
	lg.Info("Engine ready",
		zap.Strings("pricing_modules", engine.PricingModules.IDs()),
		zap.Strings("tax_modules", engine.TaxModules.IDs()),
		zap.Strings("supplier_modules", engine.SupplierModules.IDs()),
	)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Ops mux: the engine is a library consumed in-process, so only the
	// health endpoints are served.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
