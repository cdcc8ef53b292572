package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/logging"
	"github.com/km-arc/go-beans/framework/manifest"
	"github.com/km-arc/go-beans/framework/providers"
	"github.com/km-arc/go-beans/framework/routing"
)

// Application is the top-level application kernel. It embeds the container
// and the provider registry so user code can call app.Register(),
// app.GetBean() and container.Resolve(ctx, app.Container) directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	Config *config.Config
	Log    *zap.Logger

	manifest *manifest.Manifest
	wrapped  map[container.ServiceProvider]*manifested
}

// New loads configuration, builds the logger and registers the framework
// providers. The container itself is available as the "container" bean.
func New(envFiles ...string) (*Application, error) {
	cfg := config.Load(envFiles...)
	log, err := logging.New(cfg)
	if err != nil {
		return nil, err
	}
	return NewWith(cfg, log)
}

// NewWith is New for callers that already have configuration and a logger.
func NewWith(cfg *config.Config, log *zap.Logger) (*Application, error) {
	scopes := make([]container.Scope, 0, len(cfg.Container.Scopes))
	for _, s := range cfg.Container.Scopes {
		scopes = append(scopes, container.Scope(s))
	}
	c := container.New(container.WithLogger(log), container.WithScopes(scopes...))

	a := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
		Config:    cfg,
		Log:       log,
	}

	if cfg.Container.Manifest != "" {
		m, err := manifest.Load(cfg.Container.Manifest)
		if err != nil {
			return nil, err
		}
		a.manifest = m
		a.wrapped = make(map[container.ServiceProvider]*manifested)
	}

	if err := c.Register(container.Instance("container", c,
		container.WithRole(container.RoleInfrastructure))); err != nil {
		return nil, err
	}

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LoggingServiceProvider{Logger: log},
		&providers.RoutingServiceProvider{},
	} {
		if err := a.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider. When a manifest is configured the
// provider's definitions pass through its filters and overrides.
func (a *Application) Register(provider container.ServiceProvider) error {
	if a.manifest == nil {
		return a.Providers.Register(provider)
	}
	w, ok := a.wrapped[provider]
	if !ok {
		w = &manifested{ServiceProvider: provider, source: a.manifest.Apply(provider)}
		a.wrapped[provider] = w
	}
	return a.Providers.Register(w)
}

// Boot registers manifest aliases, starts the container and boots every
// provider.
func (a *Application) Boot(ctx context.Context) error {
	if a.Providers.Booted() {
		return nil
	}
	if a.manifest != nil {
		if err := a.manifest.RegisterAliases(a.Container); err != nil {
			return err
		}
	}
	return a.Providers.Boot(ctx)
}

// Shutdown terminates providers and stops the container within the
// configured timeout.
func (a *Application) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.Config.Container.ShutdownTimeout)
	defer cancel()
	return a.Providers.Shutdown(ctx)
}

// Router resolves the application router.
func (a *Application) Router(ctx context.Context) (*routing.Router, error) {
	return container.Resolve[*routing.Router](ctx, a.Container)
}

// Run boots the application (if needed) and serves HTTP until ctx is
// cancelled, then drains the server and shuts the container down.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+a.Config.App.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.Boot(ctx); err != nil {
		ln.Close()
		return err
	}
	router, err := a.Router(ctx)
	if err != nil {
		ln.Close()
		return errors.Join(err, a.Shutdown(context.Background()))
	}

	srv := &http.Server{Handler: router}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	a.Log.Info("server started",
		zap.String("addr", ln.Addr().String()),
		zap.String("env", a.Config.App.Env))

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Container.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Log.Warn("http shutdown", zap.Error(err))
	}
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	stopErr := a.Shutdown(context.Background())
	a.Log.Info("server stopped")
	return errors.Join(serveErr, stopErr)
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Config.IsProduction() }
func (a *Application) IsDebug() bool       { return a.Config.App.Debug }

// manifested routes a provider's definitions through a manifest while keeping
// its Boot and Terminate.
type manifested struct {
	container.ServiceProvider
	source container.DefinitionSource
}

func (m *manifested) Definitions() ([]*container.Definition, error) { return m.source.Definitions() }

func (m *manifested) Terminate(ctx context.Context, c *container.Container) error {
	if t, ok := m.ServiceProvider.(container.Terminator); ok {
		return t.Terminate(ctx, c)
	}
	return nil
}
