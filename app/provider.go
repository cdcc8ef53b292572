package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
)

// AppServiceProvider defines the demo application's beans.
//
// Beans:
//   - "memberRepository"    → MemberRepository
//   - "fixDiscountPolicy"   → DiscountPolicy (qualifier "fix")
//   - "rateDiscountPolicy"  → DiscountPolicy (primary, qualifier "rate")
//   - "orderService"        → OrderService
//   - "requestLogger"       → RequestLogger (request scope, proxied)
//   - "logDemoService"      → *LogDemoService
//   - "networkClient"       → *NetworkClient
//   - "prototypeCounter"    → *PrototypeCounter (prototype)
//   - "counterClient"       → *CounterClient
//   - controllers, each a routing.Registrar
type AppServiceProvider struct {
	container.BaseProvider

	// NetworkURL is the NetworkClient endpoint. Defaults to NETWORK_CLIENT_URL.
	NetworkURL string
	// Members are saved into the repository at boot.
	Members []Member
}

func (p *AppServiceProvider) Definitions() ([]*container.Definition, error) {
	url := p.NetworkURL
	if url == "" {
		url = config.Get("NETWORK_CLIENT_URL", "http://hello-spring.dev")
	}

	return []*container.Definition{
		container.Define[MemberRepository]("memberRepository",
			container.Constructor(NewMemoryMemberRepository)),

		container.Define[DiscountPolicy]("fixDiscountPolicy",
			container.Constructor(NewFixDiscountPolicy),
			container.Qualifier("fix")),
		container.Define[DiscountPolicy]("rateDiscountPolicy",
			container.Constructor(NewRateDiscountPolicy),
			container.Qualifier("rate"),
			container.Primary()),

		container.Define[OrderService]("orderService",
			container.Constructor(NewOrderService,
				container.Ref[MemberRepository](),
				container.Ref[DiscountPolicy](container.Named("discountPolicy")))),

		requestLoggerDefinition(),
		container.Define[*LogDemoService]("logDemoService",
			container.Constructor(NewLogDemoService)),

		container.Define[*NetworkClient]("networkClient",
			container.Constructor(func(log *zap.Logger) *NetworkClient {
				return NewNetworkClient(url, log)
			})),

		container.Define[*PrototypeCounter]("prototypeCounter",
			container.Supply(func(context.Context) (*PrototypeCounter, error) {
				return &PrototypeCounter{}, nil
			}),
			container.WithScope(container.ScopePrototype)),
		container.Define[*CounterClient]("counterClient",
			container.Constructor(NewCounterClient, container.ProviderOf[*PrototypeCounter]())),

		container.Define[*LogDemoController]("logDemoController",
			container.Constructor(NewLogDemoController)),
		container.Define[*MemberController]("memberController",
			container.Constructor(NewMemberController)),
		container.Define[*OrderController]("orderController",
			container.Constructor(NewOrderController)),
		container.Define[*CounterController]("counterController",
			container.Constructor(NewCounterController)),
	}, nil
}

// Boot seeds the member repository.
func (p *AppServiceProvider) Boot(ctx context.Context, c *container.Container) error {
	if len(p.Members) == 0 {
		return nil
	}
	repo, err := container.Resolve[MemberRepository](ctx, c)
	if err != nil {
		return err
	}
	for _, m := range p.Members {
		if err := repo.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
