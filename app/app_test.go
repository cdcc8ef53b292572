package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-beans/app"
	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	kernel "github.com/km-arc/go-beans/framework/app"
)

var seed = []app.Member{
	{ID: 1, Name: "memberA", Grade: app.GradeVIP},
	{ID: 2, Name: "memberB", Grade: app.GradeBasic},
}

// boot starts an application with the demo beans and an observed logger.
// The application is shut down when the test ends unless the test did so.
func boot(t *testing.T) (*kernel.Application, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := &config.Config{
		App:       config.AppConfig{Name: "test", Env: "testing"},
		Container: config.ContainerConfig{ShutdownTimeout: time.Second},
		HTTP:      config.HTTPConfig{RequestIDHeader: "X-Request-ID"},
	}

	a, err := kernel.NewWith(cfg, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, a.Register(&app.AppServiceProvider{NetworkURL: "http://test.local", Members: seed}))
	require.NoError(t, a.Boot(context.Background()))
	t.Cleanup(func() {
		if a.Providers.Booted() {
			_ = a.Shutdown(context.Background())
		}
	})
	return a, logs
}

func serve(t *testing.T, a *kernel.Application, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	router, err := a.Router(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func data(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out.Data
}

// ── order domain ──────────────────────────────────────────────────────────────

func TestOrderService_UsesPrimaryDiscountPolicy(t *testing.T) {
	a, _ := boot(t)
	ctx := context.Background()

	orders := container.MustResolve[app.OrderService](ctx, a.Container)
	order, err := orders.CreateOrder(ctx, 1, "itemA", 20000)
	require.NoError(t, err)

	assert.Equal(t, 2000, order.DiscountPrice, "rate policy is primary")
	assert.Equal(t, 18000, order.CalculatePrice())
}

func TestDiscountPolicy_ByQualifierAndType(t *testing.T) {
	a, _ := boot(t)
	ctx := context.Background()

	fix, err := container.Resolve[app.DiscountPolicy](ctx, a.Container, "fix")
	require.NoError(t, err)
	assert.IsType(t, &app.FixDiscountPolicy{}, fix)

	primary, err := container.Resolve[app.DiscountPolicy](ctx, a.Container)
	require.NoError(t, err)
	assert.IsType(t, &app.RateDiscountPolicy{}, primary)

	all, err := a.BeansOfType(ctx, container.TypeOf[app.DiscountPolicy]())
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "fixDiscountPolicy")
	assert.Contains(t, all, "rateDiscountPolicy")
}

func TestOrderService_UnknownMember(t *testing.T) {
	a, _ := boot(t)
	ctx := context.Background()

	_, err := container.MustResolve[app.OrderService](ctx, a.Container).CreateOrder(ctx, 99, "itemA", 1000)
	assert.ErrorIs(t, err, app.ErrMemberNotFound)
}

func TestOrderService_SharesSingletonRepository(t *testing.T) {
	a, _ := boot(t)
	ctx := context.Background()

	repo := container.MustResolve[app.MemberRepository](ctx, a.Container)
	require.NoError(t, repo.Save(ctx, app.Member{ID: 3, Name: "memberC", Grade: app.GradeVIP}))

	order, err := container.MustResolve[app.OrderService](ctx, a.Container).CreateOrder(ctx, 3, "itemB", 10000)
	require.NoError(t, err)
	assert.Equal(t, 1000, order.DiscountPrice)
}

// ── lifecycle ─────────────────────────────────────────────────────────────────

func TestNetworkClient_Lifecycle(t *testing.T) {
	a, logs := boot(t)
	ctx := context.Background()

	client := container.MustResolve[*app.NetworkClient](ctx, a.Container)
	assert.True(t, client.Connected(), "connected by the init hook")
	assert.Equal(t, "http://test.local", client.URL())
	assert.Equal(t, 1, logs.FilterMessage("connect").Len())
	assert.Equal(t, 1, logs.FilterMessage("call").Len())

	require.NoError(t, a.Shutdown(ctx))
	assert.False(t, client.Connected(), "disconnected on shutdown")
	assert.Equal(t, 1, logs.FilterMessage("close").Len())
}

// ── prototype via provider ────────────────────────────────────────────────────

func TestCounterClient_FreshPrototypeEachCall(t *testing.T) {
	a, _ := boot(t)
	ctx := context.Background()

	client := container.MustResolve[*app.CounterClient](ctx, a.Container)
	for i := 0; i < 3; i++ {
		n, err := client.Logic(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	}

	c1 := container.MustResolve[*app.PrototypeCounter](ctx, a.Container)
	c2 := container.MustResolve[*app.PrototypeCounter](ctx, a.Container)
	assert.NotSame(t, c1, c2)
}

// ── request scope ─────────────────────────────────────────────────────────────

func TestLogDemoService_OutsideRequestPanics(t *testing.T) {
	a, _ := boot(t)
	ctx := context.Background()

	svc := container.MustResolve[*app.LogDemoService](ctx, a.Container)
	assert.Panics(t, func() { svc.Logic(ctx, "testId") })

	_, err := container.Resolve[app.RequestLogger](ctx, a.Container)
	assert.ErrorIs(t, err, container.ErrScopeNotActive)
}

func TestLogDemo_OneLoggerPerRequest(t *testing.T) {
	a, logs := boot(t)

	first := data(t, serve(t, a, http.MethodGet, "/log-demo", ""))
	second := data(t, serve(t, a, http.MethodGet, "/log-demo", ""))

	id1, _ := first["request_id"].(string)
	id2, _ := second["request_id"].(string)
	require.NoError(t, uuid.Validate(id1))
	require.NoError(t, uuid.Validate(id2))
	assert.NotEqual(t, id1, id2)

	created := logs.FilterMessage("request scope bean create").All()
	closed := logs.FilterMessage("request scope bean close").All()
	require.Len(t, created, 2)
	require.Len(t, closed, 2)
	assert.Equal(t, id1, created[0].ContextMap()["uuid"])
	assert.Equal(t, id1, closed[0].ContextMap()["uuid"])

	// controller and service share the request's logger
	for _, msg := range []string{"controller test", "service id = testId"} {
		entries := logs.FilterMessage(msg).FilterField(zap.String("uuid", id1)).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, "/log-demo", entries[0].ContextMap()["url"])
	}
}

// ── HTTP ──────────────────────────────────────────────────────────────────────

func TestOrderController(t *testing.T) {
	a, _ := boot(t)

	tests := []struct {
		name   string
		target string
		status int
		total  float64
	}{
		{"vip", "/orders?member=1&item=itemA&price=20000", http.StatusOK, 18000},
		{"basic", "/orders?member=2&item=itemA&price=20000", http.StatusOK, 20000},
		{"unknown member", "/orders?member=99&price=20000", http.StatusNotFound, 0},
		{"missing price", "/orders?member=1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, a, http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.total, data(t, rr)["total"])
			}
		})
	}
}

func TestMemberController(t *testing.T) {
	a, _ := boot(t)

	rr := serve(t, a, http.MethodPost, "/members", `{"id":3,"name":"memberC","grade":"VIP"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = serve(t, a, http.MethodGet, "/members/3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "memberC", data(t, rr)["name"])

	assert.Equal(t, http.StatusNotFound, serve(t, a, http.MethodGet, "/members/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, a, http.MethodGet, "/members/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest,
		serve(t, a, http.MethodPost, "/members", `{"id":4,"name":"x","grade":"GOLD"}`).Code)
}

func TestCounterController(t *testing.T) {
	a, _ := boot(t)

	for i := 0; i < 2; i++ {
		rr := serve(t, a, http.MethodGet, "/counter", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, float64(1), data(t, rr)["count"])
	}
}

func TestRequestIDHeaderEchoed(t *testing.T) {
	a, _ := boot(t)

	rr := serve(t, a, http.MethodGet, "/counter", "", "X-Request-ID", "req-1")
	assert.Equal(t, "req-1", rr.Header().Get("X-Request-ID"))
}
