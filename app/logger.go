package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/container"
)

// RequestLogger tags log lines with the current request's id and URL. It is
// request scoped; singletons hold a proxy that finds the request's instance
// through ctx.
type RequestLogger interface {
	ID(ctx context.Context) string
	SetRequestURL(ctx context.Context, url string)
	Log(ctx context.Context, message string)
}

type requestLogger struct {
	log *zap.Logger

	mu  sync.Mutex
	id  string
	url string
}

func newRequestLogger(log *zap.Logger) *requestLogger {
	return &requestLogger{log: log}
}

func (l *requestLogger) Init(context.Context) error {
	l.id = uuid.NewString()
	l.log.Info("request scope bean create", zap.String("uuid", l.id))
	return nil
}

func (l *requestLogger) Destroy(context.Context) error {
	l.log.Info("request scope bean close", zap.String("uuid", l.id))
	return nil
}

func (l *requestLogger) ID(context.Context) string { return l.id }

func (l *requestLogger) SetRequestURL(_ context.Context, url string) {
	l.mu.Lock()
	l.url = url
	l.mu.Unlock()
}

func (l *requestLogger) Log(_ context.Context, message string) {
	l.mu.Lock()
	url := l.url
	l.mu.Unlock()
	l.log.Info(message, zap.String("uuid", l.id), zap.String("url", url))
}

type requestLoggerProxy struct {
	target container.Target[RequestLogger]
}

func (p requestLoggerProxy) ID(ctx context.Context) string {
	return p.target.MustGet(ctx).ID(ctx)
}

func (p requestLoggerProxy) SetRequestURL(ctx context.Context, url string) {
	p.target.MustGet(ctx).SetRequestURL(ctx, url)
}

func (p requestLoggerProxy) Log(ctx context.Context, message string) {
	p.target.MustGet(ctx).Log(ctx, message)
}

func requestLoggerDefinition() *container.Definition {
	return container.Define[RequestLogger]("requestLogger",
		container.Constructor(newRequestLogger),
		container.WithScope(container.ScopeRequest),
		container.ScopedProxy(func(t container.Target[RequestLogger]) RequestLogger {
			return requestLoggerProxy{target: t}
		}),
	)
}
