package container_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-beans/framework/container"
)

// ── recorder ──────────────────────────────────────────────────────────────────

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// ── greeters: several beans of one interface ──────────────────────────────────

type Greeter interface{ Greet() string }

type greeter struct{ word string }

func (g *greeter) Greet() string { return g.word }

func greeterDef(name, word string, opts ...container.BeanOption) *container.Definition {
	opts = append([]container.BeanOption{
		container.Constructor(func() *greeter { return &greeter{word: word} }),
	}, opts...)
	return container.Define[Greeter](name, opts...)
}

// ── nodes: graph fixtures wired by qualifier ──────────────────────────────────

type node struct {
	name string
	deps []*node
}

// nodeDef defines a singleton *node tagged with its own name and depending on
// the nodes named in deps. Creation and destruction are recorded; fail lists
// nodes whose destroy hook errors.
func nodeDef(rec *recorder, name string, deps []string, fail map[string]bool, opts ...container.BeanOption) *container.Definition {
	all := []container.BeanOption{
		container.Supply(func(context.Context) (*node, error) {
			rec.add("create %s", name)
			return &node{name: name}, nil
		}),
		container.Qualifier(name),
		container.DestroyWith("close", func(_ context.Context, n *node) error {
			rec.add("destroy %s", n.name)
			if fail[n.name] {
				return errors.New("close failed")
			}
			return nil
		}),
	}
	for _, d := range deps {
		all = append(all, container.Inject(container.Ref[*node](container.Qualified(d)), func(n *node, dep *node) {
			n.deps = append(n.deps, dep)
		}))
	}
	return container.Define[*node](name, append(all, opts...)...)
}

// ── request-scoped logger with a scoped proxy ─────────────────────────────────

type RequestLogger interface {
	ID(ctx context.Context) string
}

type requestLogger struct{ id string }

func (l *requestLogger) ID(context.Context) string { return l.id }

type requestLoggerProxy struct {
	target container.Target[RequestLogger]
}

func (p requestLoggerProxy) ID(ctx context.Context) string { return p.target.MustGet(ctx).ID(ctx) }

func requestLoggerDef(rec *recorder, opts ...container.BeanOption) *container.Definition {
	var seq atomic.Int64
	all := []container.BeanOption{
		container.Supply(func(context.Context) (RequestLogger, error) {
			return &requestLogger{id: fmt.Sprintf("logger-%d", seq.Add(1))}, nil
		}),
		container.WithScope(container.ScopeRequest),
		container.ScopedProxy(func(t container.Target[RequestLogger]) RequestLogger {
			return requestLoggerProxy{target: t}
		}),
		container.DestroyWith("close", func(ctx context.Context, l RequestLogger) error {
			rec.add("close %s", l.ID(ctx))
			return nil
		}),
	}
	return container.Define[RequestLogger]("requestLogger", append(all, opts...)...)
}

type auditService struct{ log RequestLogger }

func newAuditService(l RequestLogger) *auditService { return &auditService{log: l} }

// ── container helpers ─────────────────────────────────────────────────────────

// observed returns a debug-level logger whose entries can be inspected.
func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// started registers defs into a new container and starts it.
func started(t *testing.T, defs ...*container.Definition) *container.Container {
	t.Helper()
	c := container.New()
	for _, def := range defs {
		require.NoError(t, c.Register(def))
	}
	require.NoError(t, c.Start(context.Background()))
	return c
}
