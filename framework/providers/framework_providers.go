package providers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider exposes the loaded configuration as a bean.
//
// Beans:
//   - "config"  → *config.Config
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Definitions() ([]*container.Definition, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config provider: no configuration loaded")
	}
	return []*container.Definition{
		container.Instance("config", p.Config, container.WithRole(container.RoleInfrastructure)),
	}, nil
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider exposes the application logger. The logger is
// flushed when the container stops.
//
// Beans:
//   - "logger"  → *zap.Logger
type LoggingServiceProvider struct {
	container.BaseProvider
	Logger *zap.Logger
}

func (p *LoggingServiceProvider) Definitions() ([]*container.Definition, error) {
	l := p.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return []*container.Definition{
		container.Instance("logger", l,
			container.WithRole(container.RoleInfrastructure),
			container.DestroyWith("sync", func(_ context.Context, l *zap.Logger) error {
				// syncing a console writer fails on some platforms; nothing to act on
				_ = l.Sync()
				return nil
			})),
	}, nil
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router with access logging and
// the request-scope middleware, then lets every routing.Registrar bean add
// its routes at boot.
//
// Beans:
//   - "router"  → *routing.Router
//
// Requires "container", "config" and "logger".
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Definitions() ([]*container.Definition, error) {
	return []*container.Definition{
		container.Define[*routing.Router]("router",
			container.Constructor(newRouter),
			container.WithRole(container.RoleInfrastructure)),
	}, nil
}

func newRouter(c *container.Container, cfg *config.Config, log *zap.Logger) *routing.Router {
	return routing.New(
		routing.AccessLog(log),
		routing.RequestScope(c, cfg.HTTP.RequestIDHeader, log),
	)
}

func (p *RoutingServiceProvider) Boot(ctx context.Context, c *container.Container) error {
	router, err := container.Resolve[*routing.Router](ctx, c)
	if err != nil {
		return err
	}
	registrars, err := container.ResolveAll[routing.Registrar](ctx, c)
	if err != nil {
		return err
	}
	for _, reg := range registrars {
		reg.Routes(router)
	}
	return nil
}
