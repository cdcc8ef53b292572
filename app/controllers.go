package app

import (
	"errors"
	"net/http"
	"strconv"

	gohttp "github.com/km-arc/go-beans/framework/http"
	"github.com/km-arc/go-beans/framework/routing"
)

// controller is embedded by every controller for Request/Response factories.
type controller struct{}

func (controller) request(r *http.Request) *gohttp.Request        { return gohttp.NewRequest(r) }
func (controller) response(w http.ResponseWriter) *gohttp.Response { return gohttp.NewResponse(w) }

// ── LogDemoController ─────────────────────────────────────────────────────────

// LogDemoController serves GET /log-demo.
type LogDemoController struct {
	controller
	service *LogDemoService
	logger  RequestLogger
}

func NewLogDemoController(service *LogDemoService, logger RequestLogger) *LogDemoController {
	return &LogDemoController{service: service, logger: logger}
}

func (c *LogDemoController) Routes(r *routing.Router) {
	r.Get("/log-demo", c.logDemo)
}

func (c *LogDemoController) logDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c.logger.SetRequestURL(ctx, r.URL.String())
	c.logger.Log(ctx, "controller test")
	c.service.Logic(ctx, "testId")

	c.response(w).Success(map[string]any{
		"message":    "OK",
		"request_id": c.logger.ID(ctx),
	})
}

// ── MemberController ──────────────────────────────────────────────────────────

// MemberController serves POST /members and GET /members/{id}.
type MemberController struct {
	controller
	members MemberRepository
}

func NewMemberController(members MemberRepository) *MemberController {
	return &MemberController{members: members}
}

func (c *MemberController) Routes(r *routing.Router) {
	r.Prefix("/members", func(r *routing.Router) {
		r.Post("/", c.join)
		r.Get("/{id}", c.find)
	})
}

func (c *MemberController) join(w http.ResponseWriter, r *http.Request) {
	res := c.response(w)
	var m Member
	if err := c.request(r).BindJSON(&m); err != nil {
		res.BadRequest(err.Error())
		return
	}
	if err := c.members.Save(r.Context(), m); err != nil {
		res.BadRequest(err.Error())
		return
	}
	res.JSON(http.StatusCreated, map[string]any{"data": m})
}

func (c *MemberController) find(w http.ResponseWriter, r *http.Request) {
	res := c.response(w)
	id, err := strconv.ParseInt(c.request(r).RouteParam("id"), 10, 64)
	if err != nil {
		res.BadRequest("id must be a number")
		return
	}
	m, err := c.members.FindByID(r.Context(), id)
	if errors.Is(err, ErrMemberNotFound) {
		res.NotFound(err.Error())
		return
	}
	if err != nil {
		res.Fail(err)
		return
	}
	res.Success(m)
}

// ── OrderController ───────────────────────────────────────────────────────────

// OrderController serves GET /orders?member=..&item=..&price=..
type OrderController struct {
	controller
	orders OrderService
}

func NewOrderController(orders OrderService) *OrderController {
	return &OrderController{orders: orders}
}

func (c *OrderController) Routes(r *routing.Router) {
	r.Get("/orders", c.create)
}

func (c *OrderController) create(w http.ResponseWriter, r *http.Request) {
	req, res := c.request(r), c.response(w)

	member := req.QueryInt("member", -1)
	price := req.QueryInt("price", -1)
	if member < 0 || price < 0 {
		res.BadRequest("member and price are required")
		return
	}

	order, err := c.orders.CreateOrder(r.Context(), int64(member), req.Query("item", "item"), price)
	if errors.Is(err, ErrMemberNotFound) {
		res.NotFound(err.Error())
		return
	}
	if err != nil {
		res.Fail(err)
		return
	}
	res.Success(map[string]any{
		"order": order,
		"total": order.CalculatePrice(),
	})
}

// ── CounterController ─────────────────────────────────────────────────────────

// CounterController serves GET /counter.
type CounterController struct {
	controller
	client *CounterClient
}

func NewCounterController(client *CounterClient) *CounterController {
	return &CounterController{client: client}
}

func (c *CounterController) Routes(r *routing.Router) {
	r.Get("/counter", c.count)
}

func (c *CounterController) count(w http.ResponseWriter, r *http.Request) {
	res := c.response(w)
	n, err := c.client.Logic(r.Context())
	if err != nil {
		res.Fail(err)
		return
	}
	res.Success(map[string]any{"count": n})
}
