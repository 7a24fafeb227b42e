package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rhesis-ai/rhesis-backend/domain"
	"github.com/rhesis-ai/rhesis-backend/eventbus"
	"github.com/rhesis-ai/rhesis-backend/fieldcrypt"
	"github.com/rhesis-ai/rhesis-backend/ginsrv"
	"github.com/rhesis-ai/rhesis-backend/lifecycle"
	"github.com/rhesis-ai/rhesis-backend/recycle"
	"github.com/rhesis-ai/rhesis-backend/sietch"
	"github.com/rhesis-ai/rhesis-backend/wp"
)

// app owns everything rhesisd needs to serve requests
type app struct {
	log     *zap.Logger
	storage *storage
	bus     eventbus.Bus
	pool    *wp.Pool
	recycle *recycle.Service
	router  *gin.Engine
}

func newBus(cfg *Config, log *zap.Logger) (eventbus.Bus, error) {
	if cfg.NATS.URL == "" {
		return eventbus.NewInMemBus(cfg.Workers.Buffer), nil
	}
	bus, err := eventbus.NewNatsBus[lifecycle.Event](cfg.NATS.URL, log.Named("nats"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return bus, nil
}

// audit logs every lifecycle event published on bus
func audit(bus eventbus.Bus, log *zap.Logger) error {
	receiver := eventbus.ReceiverFunc(func(_ context.Context, msg eventbus.Message) {
		ev, ok := msg.(lifecycle.Event)
		if !ok {
			return
		}
		log.Info("lifecycle event",
			zap.String("topic", ev.Topic),
			zap.String("entity", ev.Entity),
			zap.String("id", ev.ID),
			zap.String("organization_id", ev.OrganizationID),
			zap.Time("at", ev.At),
		)
	})

	var err error
	for _, topic := range []string{lifecycle.TopicSoftDeleted, lifecycle.TopicRestored, lifecycle.TopicPurged} {
		err = multierr.Append(err, bus.Subscribe(topic, receiver))
	}
	return err
}

func register[T any](st *storage, registry *recycle.Registry, table string, cacheable bool, opts []lifecycle.Option) error {
	repo, err := repository[T](st, table, cacheable)
	if err != nil {
		return err
	}
	registry.Register(recycle.Adapt(lifecycle.New[T](table, repo, opts...)))
	return nil
}

func newApp(ctx context.Context, cfg *Config, log *zap.Logger, reg *prometheus.Registry) (_ *app, err error) {
	if cfg.Crypto.Key != "" {
		c, err := fieldcrypt.NewFromBase64(cfg.Crypto.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid crypto key: %w", err)
		}
		fieldcrypt.UseCipher(c)
	}
	fieldcrypt.UseLogger(log.Named("fieldcrypt"))

	a := &app{log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.storage, err = openStorage(ctx, cfg, log); err != nil {
		return nil, err
	}
	if a.bus, err = newBus(cfg, log); err != nil {
		return nil, err
	}
	if err = audit(a.bus, log.Named("audit")); err != nil {
		return nil, fmt.Errorf("failed to subscribe audit log: %w", err)
	}

	opts := []lifecycle.Option{
		lifecycle.WithPublisher(a.bus),
		lifecycle.WithLogger(log.Named("lifecycle")),
		lifecycle.WithMetrics(lifecycle.NewMetrics(reg)),
	}

	registry := recycle.NewRegistry()
	err = multierr.Combine(
		register[domain.Test](a.storage, registry, domain.TableTest, true, opts),
		register[domain.TestSet](a.storage, registry, domain.TableTestSet, true, opts),
		register[domain.TestRun](a.storage, registry, domain.TableTestRun, true, opts),
		register[domain.TestResult](a.storage, registry, domain.TableTestResult, true, opts),
		register[domain.Model](a.storage, registry, domain.TableModel, false, opts),
	)
	if err != nil {
		return nil, err
	}
	err = registry.AddCascade(recycle.Cascade{
		Parent:     domain.TableTestRun,
		Child:      domain.TableTestResult,
		ForeignKey: "test_run_id",
		OnDelete:   true,
		OnRestore:  true,
	})
	if err != nil {
		return nil, err
	}

	a.pool = wp.NewPool(cfg.Workers.Count, cfg.Workers.Buffer)
	recycleOpts := []recycle.Option{
		recycle.WithPool(a.pool),
		recycle.WithLogger(log.Named("recycle")),
	}
	if a.storage.pool != nil {
		recycleOpts = append(recycleOpts, recycle.WithTxRunner(sietch.NewTransactionManager(a.storage.pool)))
	}
	a.recycle = recycle.NewService(registry, recycleOpts...)

	a.router = a.routes(cfg, reg)
	return a, nil
}

func (a *app) routes(cfg *Config, reg *prometheus.Registry) *gin.Engine {
	metrics := ginsrv.NewMetrics(reg)

	router := ginsrv.SetupRouter(
		[]ginsrv.Route{
			{Method: http.MethodGet, Path: "/healthz", Handler: a.health},
			{Method: http.MethodGet, Path: "/metrics", Handler: metrics.Handler()},
		},
		// Reversed: recovery runs first
		ginsrv.ErrorFormatterMiddleware(),
		metrics.Middleware(),
		ginsrv.AccessLog(a.log.Named("http")),
		ginsrv.RequestID(),
		ginsrv.Recovery(a.log),
	)

	h := recycle.NewHandler(a.recycle, a.log.Named("http"))
	authed := router.Group("", ginsrv.Authenticate(tokenLookup(cfg)))
	h.Recycle().Register(authed)
	ginsrv.Mount(authed, "/api", h.Entities())

	return router
}

func (a *app) health(c *gin.Context) {
	if a.storage.pool != nil {
		if err := a.storage.pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "detail": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Close stops the workers before the bus and the bus before storage
func (a *app) Close() error {
	var err error
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.bus != nil {
		err = multierr.Append(err, a.bus.Close())
	}
	if a.storage != nil {
		err = multierr.Append(err, a.storage.Close())
	}
	return err
}
