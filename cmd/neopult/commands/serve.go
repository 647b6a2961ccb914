package commands

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neopult/neopult/audit"
	"github.com/neopult/neopult/config"
	"github.com/neopult/neopult/console"
	"github.com/neopult/neopult/errors"
	"github.com/neopult/neopult/eventqueue"
	"github.com/neopult/neopult/logger"
	"github.com/neopult/neopult/notify"
	"github.com/neopult/neopult/process"
	"github.com/neopult/neopult/scripting"
	"github.com/neopult/neopult/shutdown"
	"github.com/neopult/neopult/wm"
	"github.com/neopult/neopult/wsserver"
	"github.com/neopult/neopult/xproto"
)

// ServeCmd runs the channel daemon: it resolves the channel's environment,
// brings up the window manager and process supervisor, loads every plugin
// instance found under the channel's plugins directory, and serves the
// WebSocket control plane and stdin console until signaled to stop.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Run the channel daemon",
	Long: `Start the neopult daemon for one channel: connect to its headless X
session, discover and load every plugin instance under <channel-home>/plugins,
and serve the WebSocket control plane and stdin console until interrupted.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := config.GetEnvConfig()
	if err != nil {
		return errors.Wrap(err, "failed to resolve channel environment")
	}

	hc, _, err := config.LoadHostConfig(env.ChannelHome)
	if err != nil {
		return errors.Wrap(err, "failed to load host config")
	}

	conn, err := xproto.Connect()
	if err != nil {
		return errors.Wrap(err, "failed to connect to the X server")
	}

	manager, err := wm.New(conn)
	if err != nil {
		return errors.Wrap(err, "failed to initialize the window manager")
	}

	supervisor := process.NewSupervisor(env.Channel)
	if err := supervisor.SweepStale(); err != nil {
		logger.Warnw("failed to sweep stale processes", "error", err)
	}

	registry := scripting.NewRegistry()
	dispatcher := eventqueue.NewDispatcher(registry, nil)
	bus := notify.NewBus()

	hostEnv := &scripting.HostEnv{
		Registry:   registry,
		WM:         manager,
		Supervisor: supervisor,
		Env:        env,
		Bus:        bus,
		Sink:       eventqueue.HostSink{Events: dispatcher.Events},
	}

	ctx := context.Background()
	eval, err := scripting.NewWazeroEvaluator(ctx, hostEnv)
	if err != nil {
		return errors.Wrap(err, "failed to start the plugin runtime")
	}
	dispatcher.Eval = eval

	if err := scripting.DiscoverAndLoadPlugins(ctx, env.ChannelHome, eval); err != nil {
		logger.ScriptingWarnw("plugin discovery failed", "error", err)
	}

	auditDBPath := hc.AuditDBPath
	if !filepath.IsAbs(auditDBPath) {
		auditDBPath = filepath.Join(env.ChannelHome, auditDBPath)
	}
	auditLog, err := audit.Open(auditDBPath)
	if err != nil {
		return errors.Wrap(err, "failed to open audit database")
	}
	dispatcher.Audit = auditLog

	server := wsserver.NewServer(dispatcher.Events, bus, wsserver.ListenAddr(hc.ListenAddr, env.Channel), hc.WebSocketPassword, hc)

	watcher, err := config.NewWatcher(env.ChannelHome)
	if err != nil {
		logger.Warnw("failed to start config watcher, host config will not hot-reload", "error", err)
	} else {
		watcher.OnReload(func(reloaded *config.HostConfig) error {
			server.UpdateConfig(reloaded)
			logger.Infow("host config reloaded")
			return nil
		})
		watcher.Start()
		defer watcher.Close()
	}

	coordinator := shutdown.NewCoordinator()
	dispatcher.OnShutdown = func(ctx context.Context) {
		registry.ShutdownAll(ctx, eval)
		supervisor.Wait()
		if err := eval.CloseRuntime(ctx); err != nil {
			logger.ScriptingWarnw("failed to close plugin runtime", "error", err)
		}
		if err := auditLog.Close(); err != nil {
			logger.Warnw("failed to close audit database", "error", err)
		}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	dispatcherDone := coordinator.NewToken()
	go func() {
		defer dispatcherDone.Release()
		dispatcher.Run(runCtx)
	}()

	serverDone := coordinator.NewToken()
	go func() {
		defer serverDone.Release()
		if err := server.Run(runCtx); err != nil {
			logger.WSWarnw("control plane stopped with an error", "error", err)
		}
	}()

	consoleDone := coordinator.NewToken()
	consoleHandle := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), dispatcher.Events)
	go func() {
		defer consoleDone.Release()
		consoleHandle.Run(runCtx)
	}()

	printStartupBanner(env.Channel, server.Addr, env.ChannelHome)

	coordinator.WaitForSignal()
	cancelRun()
	close(dispatcher.Shutdown)
	coordinator.WaitForCleanup()

	return nil
}
