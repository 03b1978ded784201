package daemon

import (
	"context"
	"os"

	"github.com/matheus3301/socialsync/internal/api"
	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/chat"
	"github.com/matheus3301/socialsync/internal/config"
	"github.com/matheus3301/socialsync/internal/live"
	"github.com/matheus3301/socialsync/internal/lock"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/notify"
	"github.com/matheus3301/socialsync/internal/rest"
	"github.com/matheus3301/socialsync/internal/session"
	"github.com/matheus3301/socialsync/internal/status"
	intsync "github.com/matheus3301/socialsync/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override; empty = ~/.socialsync/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideSession,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideRESTClient,
			provideDialer,
			provideManager,
			provideChat,
			provideNotify,
			intsync.NewEngine,
			api.NewService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideSession(p Params) (*session.Session, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	return session.New(p.SessionName, cfg, os.LookupEnv)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideRESTClient(s *session.Session, logger *zap.Logger) *rest.Client {
	logger.Info("backend configured", zap.String("base_url", s.BaseURL), zap.Duration("timeout", s.Timeout))
	return rest.New(s.BaseURL, s.Timeout, logger)
}

func provideDialer(s *session.Session) live.Dialer {
	return live.NewWSDialer(s.BaseURL)
}

func provideManager(d live.Dialer, m *status.Machine, b *bus.Bus, logger *zap.Logger) *live.Manager {
	mgr := live.NewManager(d, m, b, logger)
	mgr.RegisterHandler(live.NewEventHandler(b, logger).Handle)
	return mgr
}

func provideChat(s *session.Session, c *rest.Client, m *live.Manager, b *bus.Bus, logger *zap.Logger) *chat.Synchronizer {
	opts := chat.Options{
		FilterIncoming: s.Chat.FilterIncoming,
		CountUnread:    s.Chat.CountsUnread(),
	}
	return chat.NewSynchronizer(c, m, b, opts, logger)
}

func provideNotify(c *rest.Client, m *live.Manager, b *bus.Bus, logger *zap.Logger) *notify.Stream {
	return notify.NewStream(c, m, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, svc *api.Service, lk *lock.Lock, s *session.Session, engine *intsync.Engine, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	loggedIn := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if s.Identity == nil {
				logger.Info("no identity configured, waiting for login")
				close(loggedIn)
				return nil
			}
			id := *s.Identity
			go func() {
				defer close(loggedIn)
				if err := engine.Login(ctx, id); err != nil {
					logger.Error("auto-login failed", zap.String("user_id", id.ID), zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			<-loggedIn
			svc.Close()
			srv.Stop(ctx)
			engine.Close()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
