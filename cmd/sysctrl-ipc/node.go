package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srediag/sysctrl-ipc/adapter"
	"github.com/srediag/sysctrl-ipc/api"
	"github.com/srediag/sysctrl-ipc/internal/config"
	"github.com/srediag/sysctrl-ipc/internal/logger"
	"github.com/srediag/sysctrl-ipc/pkg/backend"
	"github.com/srediag/sysctrl-ipc/pkg/client"
	"github.com/srediag/sysctrl-ipc/pkg/dispatch"
	"github.com/srediag/sysctrl-ipc/pkg/health"
	"github.com/srediag/sysctrl-ipc/pkg/transport"
)

const shutdownTimeout = 5 * time.Second

type runOptions struct {
	Count    int
	Interval time.Duration
	Once     bool
}

// node wires one application endpoint and a simulated system controller over
// the configured transport.
type node struct {
	cfg *config.Config
	log *logger.Logger

	registry  *prometheus.Registry
	endpoints *backend.Registry
	app       *backend.Endpoint
	sysctrl   *backend.Endpoint
	disp      *dispatch.Dispatcher
	client    *client.Client

	closers  []func() error
	listener net.Listener
	server   *http.Server

	replies atomic.Int64
	replyCh chan struct{}
}

func newNode(cfg *config.Config, log *logger.Logger) (*node, error) {
	n := &node{
		cfg:       cfg,
		log:       log.With("component", "node"),
		registry:  prometheus.NewRegistry(),
		endpoints: backend.NewRegistry(log),
		replyCh:   make(chan struct{}, 1),
	}
	n.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Closers run in reverse, so the transports stop delivering before the
	// dispatcher drains.
	disp, err := dispatch.New(cfg.Client.DispatchWorkers, log)
	if err != nil {
		return nil, err
	}
	n.disp = disp
	n.closers = append(n.closers, n.disp.Close)
	if err := n.disp.Subscribe("reply-counter", n.onReply); err != nil {
		n.Close()
		return nil, err
	}

	pair, err := transport.NewPair(cfg.Transport, cfg.Endpoint.MaxPacketSize, log)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.closers = append(n.closers, pair.Close)
	tracer := adapter.Tracer(nil)

	var metricsReg prometheus.Registerer
	if cfg.Metrics.Enabled {
		metricsReg = n.registry
	}

	appMetrics, err := backend.NewMetrics(metricsReg, cfg.Metrics.Namespace, cfg.Endpoint.Name)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.app, err = backend.New(cfg.Endpoint, pair.Local,
		backend.WithLogger(log),
		backend.WithTracer(tracer),
		backend.WithDispatcher(n.disp),
		backend.WithMetrics(appMetrics))
	if err != nil {
		n.Close()
		return nil, err
	}

	simCfg := cfg.Endpoint
	simCfg.Name = cfg.Endpoint.Name + "_peer"
	simMetrics, err := backend.NewMetrics(metricsReg, cfg.Metrics.Namespace, simCfg.Name)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.sysctrl, err = backend.New(simCfg, pair.Remote,
		backend.WithLogger(log),
		backend.WithTracer(tracer),
		backend.WithDispatcher(api.DispatcherFunc(n.echo)),
		backend.WithMetrics(simMetrics))
	if err != nil {
		n.Close()
		return nil, err
	}

	for _, e := range []*backend.Endpoint{n.app, n.sysctrl} {
		if err := n.endpoints.Add(e); err != nil {
			n.Close()
			return nil, err
		}
	}
	n.client = client.New(n.app, cfg.Client, log)
	return n, nil
}

// echo is the simulated system controller: every message goes straight back.
func (n *node) echo(data []byte) {
	if err := n.sysctrl.Send(data); err != nil {
		n.log.Warn("Echo failed", "error", err)
	}
}

func (n *node) onReply(data []byte) {
	n.replies.Add(1)
	n.log.Debug("Reply received", "payload", string(data))
	select {
	case n.replyCh <- struct{}{}:
	default:
	}
}

// Start serves the admin endpoints, initializes both endpoints and waits for
// the link to come up.
func (n *node) Start(ctx context.Context) error {
	if n.cfg.Metrics.Enabled || n.cfg.Health.Enabled {
		if err := n.serveAdmin(); err != nil {
			return err
		}
	}

	if err := n.endpoints.InitializeAll(ctx); err != nil {
		return fmt.Errorf("initialize endpoints: %w", err)
	}

	waitCtx := ctx
	if d := n.cfg.Endpoint.ConnectTimeout; d > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if err := n.app.WaitForConnection(waitCtx); err != nil {
		return err
	}
	n.log.Info("Endpoint connected", "endpoint", n.app.Name())
	return nil
}

func (n *node) serveAdmin() error {
	mux := http.NewServeMux()
	if n.cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{Registry: n.registry}))
	}
	if n.cfg.Health.Enabled {
		var reg prometheus.Registerer
		if n.cfg.Metrics.Enabled {
			reg = n.registry
		}
		h := health.NewHandler(reg, n.cfg.Metrics.Namespace, n.cfg.Health, n.endpoints)
		mux.Handle("/live", h)
		mux.Handle("/ready", h)
	}

	l, err := net.Listen("tcp", n.cfg.Admin.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", n.cfg.Admin.Address, err)
	}
	n.listener = l
	n.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := n.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.log.Error("Admin server failed", "error", err)
		}
	}()
	n.log.Info("Admin server listening", "address", l.Addr().String())
	return nil
}

// AdminAddr returns the bound admin address, or "" when not serving.
func (n *node) AdminAddr() string {
	if n.listener == nil {
		return ""
	}
	return n.listener.Addr().String()
}

// Run sends opts.Count messages and then waits: for every reply when
// opts.Once is set, otherwise for ctx.
func (n *node) Run(ctx context.Context, opts runOptions) error {
	for i := 0; i < opts.Count; i++ {
		msg := []byte(fmt.Sprintf("ping-%d", i))
		if err := n.client.Send(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("send %q: %w", msg, err)
		}
		if opts.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(opts.Interval):
			}
		}
	}
	n.log.Info("Messages sent", "count", opts.Count, "stats", n.app.Stats().String())

	if !opts.Once {
		<-ctx.Done()
		return nil
	}
	for n.replies.Load() < int64(opts.Count) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d of %d replies received: %w", n.replies.Load(), opts.Count, ctx.Err())
		case <-n.replyCh:
		}
	}
	n.log.Info("All replies received", "count", opts.Count)
	return nil
}

// Close stops the admin server, the endpoints and the transports.
func (n *node) Close() {
	if n.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := n.server.Shutdown(ctx); err != nil {
			n.log.Warn("Admin server shutdown failed", "error", err)
		}
		cancel()
	}
	for _, s := range n.endpoints.Stats() {
		n.log.Info("Endpoint stats", "stats", s.String())
	}
	if err := n.endpoints.CloseAll(); err != nil {
		n.log.Warn("Endpoint close failed", "error", err)
	}
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil {
			n.log.Warn("Close failed", "error", err)
		}
	}
	n.closers = nil
}
