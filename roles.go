package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	appfulfillment "github.com/Zhima-Mochi/minishop-saga/internal/application/fulfillment"
	appinv "github.com/Zhima-Mochi/minishop-saga/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-saga/internal/application/order"
	apppay "github.com/Zhima-Mochi/minishop-saga/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	"github.com/Zhima-Mochi/minishop-saga/internal/config"
	"github.com/Zhima-Mochi/minishop-saga/internal/domain/event"
	domfulfillment "github.com/Zhima-Mochi/minishop-saga/internal/domain/fulfillment"
	dominv "github.com/Zhima-Mochi/minishop-saga/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/httpclient"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/postgres"
	redisstore "github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-saga/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-saga/internal/presentation/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// eventChannel is the broker the process talks to, memory or Kafka.
type eventChannel struct {
	pub   event.Publisher
	sub   event.Subscriber
	start func(context.Context)
	stop  func(context.Context)
	close func() error
}

// process holds everything a role set needs at run time, plus what to release on shutdown.
type process struct {
	cfg     config.Config
	tel     observability.Observability
	log     observability.Logger
	clock   clock.Clock
	pool    *pgxpool.Pool
	rdb     *redis.Client
	events  eventChannel
	servers []namedServer
}

func assemble(ctx context.Context, cfg config.Config, tel observability.Observability) (*process, error) {
	p := &process{
		cfg:   cfg,
		tel:   tel,
		log:   tel.Logger(),
		clock: clock.System(),
	}

	if cfg.Store == config.StorePostgres && (cfg.Role.Runs(config.RoleOrder) || cfg.Role.Runs(config.RoleInventory)) {
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		p.pool = pool
	}
	p.events = newEventChannel(cfg, tel)

	builders := []struct {
		role  config.Role
		build func(context.Context) (httppresentation.RoleHandler, httppresentation.ReadyFunc, error)
	}{
		{config.RoleInventory, p.inventoryRole},
		{config.RolePayment, p.paymentRole},
		{config.RoleOrder, p.orderRole},
		{config.RoleFulfillment, p.fulfillmentRole},
	}
	for _, b := range builders {
		if !cfg.Role.Runs(b.role) {
			continue
		}
		h, ready, err := b.build(ctx)
		if err != nil {
			p.close(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("%s role: %w", b.role, err)
		}
		p.addServer(b.role, h, ready)
	}
	return p, nil
}

func newEventChannel(cfg config.Config, tel observability.Observability) eventChannel {
	if cfg.Broker == config.BrokerKafka {
		sub := kafka.NewSubscriber(cfg.KafkaBrokers, tel)
		pub := kafka.NewPublisher(cfg.KafkaBrokers, tel)
		return eventChannel{pub: pub, sub: sub, start: sub.Start, stop: sub.Stop, close: pub.Close}
	}
	bus := memory.NewBus(tel)
	return eventChannel{pub: bus, sub: bus, start: bus.Start, stop: bus.Stop}
}

func (p *process) addServer(role config.Role, h httppresentation.RoleHandler, ready httppresentation.ReadyFunc) {
	addr := p.cfg.HTTPAddr
	if p.cfg.Role == config.RoleAll {
		addr = p.cfg.RoleAddrs[role]
	}
	var handlers []httppresentation.RoleHandler
	if h != nil {
		handlers = append(handlers, h)
	}
	router := httppresentation.NewRouter(httppresentation.RouterConfig{
		Logger:      p.log.With(observability.F("server", string(role))),
		Tel:         p.tel,
		CORSOrigins: p.cfg.CORSOrigins,
		Metrics:     promhttp.Handler(),
		Ready:       ready,
	}, handlers...)
	p.servers = append(p.servers, newServer(string(role), addr, router))
}

func (p *process) inventoryRole(ctx context.Context) (httppresentation.RoleHandler, httppresentation.ReadyFunc, error) {
	var repo dominv.Repository = memory.NewInventoryRepository(p.clock)
	if p.pool != nil {
		repo = postgres.NewInventoryRepository(p.pool, p.clock)
	}
	svc := appinv.NewService(repo, p.clock, p.tel)
	if p.cfg.SeedData {
		if _, err := svc.SeedIfEmpty(ctx); err != nil {
			return nil, nil, err
		}
	}
	return httppresentation.NewInventoryHandler(svc), p.poolReady(), nil
}

func (p *process) paymentRole(context.Context) (httppresentation.RoleHandler, httppresentation.ReadyFunc, error) {
	payments := apppay.NewSimulated(p.tel, apppay.WithDeclineRate(p.cfg.PaymentDeclineRate), apppay.WithClock(p.clock))
	return httppresentation.NewPaymentHandler(payments), nil, nil
}

func (p *process) orderRole(ctx context.Context) (httppresentation.RoleHandler, httppresentation.ReadyFunc, error) {
	var repo domorder.Repository = memory.NewOrderRepository()
	if p.pool != nil {
		repo = postgres.NewOrderRepository(p.pool)
	}
	ids := id.NewUUIDGenerator()
	if p.cfg.SeedData {
		seeded, err := apporder.SeedIfEmpty(ctx, repo, ids, p.clock)
		if err != nil {
			return nil, nil, err
		}
		if seeded {
			p.log.Info("orders_seeded")
		}
	}

	hc := &http.Client{Timeout: p.cfg.DependencyTimeout}
	create := apporder.NewCreateOrderUseCase(apporder.CreateOrderDeps{
		Repo:              repo,
		IDs:               ids,
		Ledger:            httpclient.NewInventoryClient(p.cfg.InventoryURL, hc, p.tel),
		Payments:          httpclient.NewPaymentClient(p.cfg.PaymentURL, hc, p.tel),
		Publisher:         p.events.pub,
		Clock:             p.clock,
		Topic:             p.cfg.OrdersTopic,
		UnitPrice:         p.cfg.UnitPrice,
		DependencyTimeout: p.cfg.DependencyTimeout,
	}, p.tel)

	h := httppresentation.NewOrderHandler(
		create,
		apporder.NewUpdateStatusUseCase(repo, p.clock, p.tel),
		apporder.NewQueryService(repo, p.tel),
	)
	return h, p.poolReady(), nil
}

func (p *process) fulfillmentRole(ctx context.Context) (httppresentation.RoleHandler, httppresentation.ReadyFunc, error) {
	var (
		store domfulfillment.Store = memory.NewFulfillmentStore()
		ready httppresentation.ReadyFunc
	)
	if p.cfg.FulfillmentStore == config.DedupeRedis {
		p.rdb = redis.NewClient(&redis.Options{Addr: p.cfg.RedisAddr})
		rs := redisstore.NewFulfillmentStore(p.rdb, redisstore.DefaultTTL)
		if err := rs.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("redis %s: %w", p.cfg.RedisAddr, err)
		}
		store, ready = rs, rs.Ping
	}

	worker := appfulfillment.NewWorker(appfulfillment.WorkerDeps{
		Store:           store,
		Orders:          httpclient.NewOrderClient(p.cfg.OrderURL, &http.Client{Timeout: p.cfg.DependencyTimeout}, p.tel),
		Clock:           p.clock,
		Topic:           p.cfg.OrdersTopic,
		Queue:           p.cfg.FulfillmentQueue,
		CallbackTimeout: p.cfg.DependencyTimeout,
	}, p.tel)
	if err := worker.Start(p.events.sub, workerpresentation.WithEventContext(p.log, p.tel)); err != nil {
		return nil, nil, err
	}
	// The fulfillment role has no API of its own; its server only answers health and metrics.
	return nil, ready, nil
}

func (p *process) poolReady() httppresentation.ReadyFunc {
	if p.pool == nil {
		return nil
	}
	return p.pool.Ping
}

// close releases consumers before the broker and stores they depend on.
func (p *process) close(ctx context.Context) {
	if p.events.stop != nil {
		p.events.stop(ctx)
	}
	var errs []error
	if p.events.close != nil {
		errs = append(errs, p.events.close())
	}
	if p.rdb != nil {
		errs = append(errs, p.rdb.Close())
	}
	if p.pool != nil {
		p.pool.Close()
	}
	if err := errors.Join(errs...); err != nil {
		p.log.Warn("shutdown_close_failed", observability.F("error", err.Error()))
	}
}
