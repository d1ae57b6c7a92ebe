package app

import (
	"context"
	"fmt"
	"time"

	"peercam/internal/core/ports"
	"peercam/internal/core/services"
	"peercam/internal/infrastructure/capture"
	"peercam/internal/infrastructure/monitoring"
	"peercam/internal/infrastructure/registry"
	"peercam/internal/infrastructure/reliability"
	"peercam/internal/infrastructure/render"
	"peercam/internal/infrastructure/serial"
	"peercam/internal/infrastructure/signal"
	webrtcinfra "peercam/internal/infrastructure/webrtc"
	"peercam/internal/reactor"
	"peercam/pkg/circuitbreaker"
	"peercam/pkg/config"
	"peercam/pkg/errors"
	"peercam/pkg/retry"
	"peercam/pkg/tracing"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const signalingTokenTTL = 24 * time.Hour

// App sequences one run of the client: acquire devices, build the
// connection manager, start the signaling backends, drive the reactor
// until a stop arrives, and release everything in the reverse order
// resources depend on each other.
type App struct {
	settings *config.Settings
	cfg      *config.Config
	logger   *zap.SugaredLogger
}

func New(settings *config.Settings, cfg *config.Config, logger *zap.SugaredLogger) *App {
	return &App{settings: settings, cfg: cfg, logger: logger}
}

// Run executes the full lifecycle and blocks until shutdown completes.
func (a *App) Run() error {
	log := a.logger

	// Ambient infrastructure outside the numbered sequence: tracing,
	// the session registry, and the metrics collector.
	if a.cfg.Tracing.Enabled {
		tp, err := tracing.Init(tracing.Config{
			Enabled:     true,
			ServiceName: "peercam",
			JaegerURL:   a.cfg.Tracing.JaegerEndpoint,
			SampleRate:  a.cfg.Tracing.SampleRate,
		})
		if err != nil {
			log.Warnw("tracing init failed, continuing without", "error", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(ctx)
			}()
		}
	}

	regFactory, err := registry.NewFactory(a.cfg, log)
	if err != nil {
		return errors.NewResourceError("failed to initialize session registry", err)
	}
	defer regFactory.Close()

	sessionRegistry := reliability.NewRegistryWrapper(
		regFactory.CreateSessionRegistry(),
		retry.DefaultConfig(),
		circuitbreaker.DefaultConfig(),
		log,
	)

	var collector *monitoring.Collector
	if a.cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewCollector()
	}

	rx := reactor.New(log)

	// Steps 1-2: the capture device. Acquisition failures are fatal and
	// happen before the reactor ever runs.
	var source ports.VideoSource
	if !a.settings.NoVideo {
		source, err = capture.NewFactory(a.settings, a.cfg, log).Build()
		if err != nil {
			return errors.NewResourceError("failed to open capture device", err)
		}
	}

	// Step 3: the optional display sink.
	var renderer ports.Renderer
	if a.settings.RenderFile != "" {
		r, err := render.New(a.settings.RenderFile, a.settings.Framerate, collector, log)
		if err != nil {
			if source != nil {
				source.Close()
			}
			return errors.NewResourceError("failed to open render sink", err)
		}
		renderer = r
	}

	// Step 4: the connection manager, owner of every session, and the
	// non-owning handle everything else goes through.
	mgr, err := webrtcinfra.NewManager(a.settings, a.iceServers(), source, sessionRegistry, collector, log)
	if err != nil {
		if renderer != nil {
			renderer.Close()
		}
		if source != nil {
			source.Close()
		}
		return errors.NewResourceError("failed to build connection manager", err)
	}
	if renderer != nil {
		mgr.SetRenderer(renderer)
	}
	handle := webrtcinfra.NewHandle(mgr)

	// Step 5: the serial data bridge. Opened before any backend so a
	// missing device fails the run instead of a live session.
	var bridge ports.DataBridge
	if device, rate := a.serialParams(); device != "" {
		bridge, err = serial.NewBridge(rx, device, rate, log)
		if err != nil {
			handle.Close()
			mgr.Close()
			if renderer != nil {
				renderer.Close()
			}
			return errors.NewResourceError("failed to open serial device", err)
		}
		mgr.AttachBridge(bridge)
	}

	// Step 6: the signal watcher. It only ever requests a reactor stop.
	coordinator := NewShutdownCoordinator(rx, log)
	coordinator.Install()
	defer coordinator.Uninstall()

	// Step 7: the signaling backends, constructed bound to the reactor
	// and started non-blocking.
	backends, err := a.buildBackends(rx, handle, regFactory, collector, log)
	if err != nil {
		coordinator.Uninstall()
		handle.Close()
		mgr.Close()
		if renderer != nil {
			renderer.Close()
		}
		if bridge != nil {
			bridge.Close()
		}
		return err
	}
	for _, backend := range backends {
		if err := backend.Run(); err != nil {
			log.Errorw("backend failed to start", "backend", backend.Name(), "error", err)
		} else {
			log.Infow("backend running", "backend", backend.Name())
		}
	}

	// Step 8: wire the renderer's refresh loop into the reactor and
	// start the capture pump.
	if renderer != nil {
		renderer.Start(rx.Post, handle)
	}
	if source != nil {
		go source.Start(rx.Context())
	}

	// Step 9: drive the reactor until someone asks it to stop.
	log.Infow("ready", "backends", len(backends))
	rx.Run()
	coordinator.MarkStopped()
	log.Infow("reactor drained", "dropped_dispatches", rx.Dropped())

	// Step 10: detach the renderer's dispatch hook before tearing down
	// what its callbacks reference.
	if renderer != nil {
		renderer.ClearDispatchHook()
	}

	// Step 11: release the renderer first, then the manager. Dispatch
	// callbacks queued before step 10 may still hold manager handles, so
	// handle.Close blocks until they drain.
	if renderer != nil {
		renderer.Close()
	}
	handle.Close()
	mgr.Close()
	if bridge != nil {
		bridge.Close()
	}

	return nil
}

// serialParams resolves the serial device and baud rate. The --serial
// flag wins; the file config supplies the device when the flag is
// absent, at the 9600 default rate.
func (a *App) serialParams() (device string, rate int) {
	device = a.settings.SerialDevice
	rate = a.settings.SerialRate
	if device == "" {
		device = a.cfg.Serial.Device
	}
	if rate == 0 {
		rate = 9600
	}
	return device, rate
}

func (a *App) iceServers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	for _, s := range a.cfg.WebRTC.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

// buildBackends constructs every enabled backend. Construction acquires
// listen sockets, so failures are resource errors.
func (a *App) buildBackends(
	rx *reactor.Reactor,
	handle ports.ManagerHandle,
	regFactory *registry.Factory,
	collector *monitoring.Collector,
	log *zap.SugaredLogger,
) ([]ports.SignalingBackend, error) {
	settings := a.settings
	for _, extra := range a.cfg.Backends {
		settings = settings.WithExtraBackends(config.BackendKind(extra))
	}
	if err := settings.ValidateBackends(); err != nil {
		return nil, errors.NewConfigurationError(err.Error())
	}

	tokens := services.NewTokenService(settings.SignalingKey, signalingTokenTTL)

	checker := monitoring.NewHealthChecker()
	checker.AddCheck("registry", 2*time.Second, regFactory.HealthCheck)
	checker.AddCheck("reactor", time.Second, func(ctx context.Context) error {
		done := make(chan struct{})
		if !rx.Post(func() { close(done) }) {
			return fmt.Errorf("reactor not accepting work")
		}
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var backends []ports.SignalingBackend
	for _, kind := range settings.BackendList() {
		switch kind {
		case config.BackendDirectPeer:
			backend, err := signal.NewP2PServer(rx, settings, a.cfg, handle, collector, log)
			if err != nil {
				return nil, errors.NewResourceError("failed to start direct-peer backend", err)
			}
			backends = append(backends, backend)

		case config.BackendRelay:
			backend, err := signal.NewRelayClient(rx, settings, a.cfg, handle, collector, tokens, checker, log)
			if err != nil {
				return nil, errors.NewResourceError("failed to start relay backend", err)
			}
			backends = append(backends, backend)

		case config.BackendRendezvous:
			backends = append(backends, signal.NewRendezvousClient(rx, settings, a.cfg, handle, collector, tokens, log))
		}
	}

	return backends, nil
}
