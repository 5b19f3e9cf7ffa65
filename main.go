package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/nstehr/armada/armada-core/command"
	"github.com/nstehr/armada/armada-core/config"
	"github.com/nstehr/armada/armada-core/ipc"
	"github.com/nstehr/armada/armada-core/notify"
	"github.com/nstehr/armada/armada-core/orders"
	"github.com/nstehr/armada/armada-core/session"
	"github.com/nstehr/armada/armada-core/store"
)

const banner = `
 █████╗ ██████╗ ███╗   ███╗ █████╗ ██████╗  █████╗
██╔══██╗██╔══██╗████╗ ████║██╔══██╗██╔══██╗██╔══██╗
███████║██████╔╝██╔████╔██║███████║██║  ██║███████║
██╔══██║██╔══██╗██║╚██╔╝██║██╔══██║██║  ██║██╔══██║
██║  ██║██║  ██║██║ ╚═╝ ██║██║  ██║██████╔╝██║  ██║
╚═╝  ╚═╝╚═╝  ╚═╝╚═╝     ╚═╝╚═╝  ╚═╝╚═════╝ ╚═╝  ╚═╝

Fleet Command & Tactical Orders`

// snapshotsKept bounds the snapshot table; older rows are pruned.
const snapshotsKept = 50

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	fmt.Println(banner)

	slog.Info("starting armada", "socket", cfg.SocketPath, "workers", cfg.TickWorkers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	disp := notify.NewDispatcher(cfg.NotifyMaxRetries)
	disp.Register("log", notify.AtLeast(notify.PriorityHigh), notify.LogHandler)
	disp.RegisterFallback("log-fallback", notify.LogHandler)
	if cfg.RedisURL != "" {
		client, err := notify.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis unavailable, notifications stay local", "error", err)
		} else {
			defer client.Close()
			disp.Register("redis", nil, notify.RedisHandler(client, cfg.NotifyChannel))
			slog.Info("publishing notifications", "channel", cfg.NotifyChannel)
		}
	}
	go disp.Run(ctx)

	exec := orders.NewExecutor(orders.NewConditions())
	exec.MaxBlockedTicks = cfg.MaxBlockedTicks
	exec.HistoryLimit = cfg.HistoryLimit
	reg := command.NewRegistry(command.Options{
		Executor: exec,
		Sink:     disp,
		Workers:  cfg.TickWorkers,
	})

	clock := &session.Clock{}
	if cfg.DBPath != "" {
		autosave, err := openStore(ctx, cfg, reg, clock)
		if err != nil {
			slog.Error("failed to open snapshot store", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer func() {
			autosave.Stop()
			if _, err := autosave.SaveNow(context.Background()); err != nil {
				slog.Error("final snapshot failed", "error", err)
			}
		}()
	}

	// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		slog.Error("failed to clean up socket", "path", cfg.SocketPath, "error", err)
		os.Exit(1)
	}

	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		slog.Error("failed to listen on socket", "path", cfg.SocketPath, "error", err)
		os.Exit(1)
	}
	defer listener.Close()
	defer os.Remove(cfg.SocketPath)

	slog.Info("listening on domain socket", "path", cfg.SocketPath)

	opts := session.Options{
		Registry:   reg,
		Dispatcher: disp,
		Clock:      clock,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					slog.Error("failed to accept connection", "error", err)
					continue
				}
			}
			slog.Info("new connection accepted")
			go handleConn(ctx, conn, opts)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

func handleConn(ctx context.Context, conn net.Conn, opts session.Options) {
	s, err := session.New(ctx, ipc.NewConnection(conn, nil), opts)
	if err != nil {
		slog.Error("failed to start session", "error", err)
		conn.Close()
		return
	}
	s.Serve()
}

// openStore restores the latest snapshot into reg and starts autosaving.
func openStore(ctx context.Context, cfg config.Config, reg *command.Registry, clock *session.Clock) (*store.Autosaver, error) {
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Verify(ctx); err != nil {
		slog.Warn("snapshot chain does not verify", "error", err)
	}

	states, snap, err := st.Latest(ctx)
	switch {
	case errors.Is(err, store.ErrNoSnapshot):
		slog.Info("no snapshot to restore")
	case err != nil:
		slog.Error("could not load snapshot, starting empty", "error", err)
	default:
		reg.Restore(states)
		clock.Set(snap.TakenAt)
		slog.Info("snapshot restored", "id", snap.ID, "fleets", snap.Fleets, "taken_at", snap.TakenAt)
	}

	autosave := store.NewAutosaver(st, reg, clock.Now, snapshotsKept)
	if err := autosave.Start(ctx, cfg.SnapshotSchedule); err != nil {
		st.Close()
		return nil, err
	}
	return autosave, nil
}
