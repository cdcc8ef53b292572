package app

import "context"

// Order is the result of placing an order.
type Order struct {
	MemberID      int64  `json:"member_id"`
	ItemName      string `json:"item_name"`
	ItemPrice     int    `json:"item_price"`
	DiscountPrice int    `json:"discount_price"`
}

// CalculatePrice is the price after discount.
func (o Order) CalculatePrice() int { return o.ItemPrice - o.DiscountPrice }

// OrderService places orders.
type OrderService interface {
	CreateOrder(ctx context.Context, memberID int64, itemName string, itemPrice int) (Order, error)
}

// DefaultOrderService prices orders with a MemberRepository and a DiscountPolicy.
type DefaultOrderService struct {
	members  MemberRepository
	discount DiscountPolicy
}

// NewOrderService builds an OrderService from its collaborators.
func NewOrderService(members MemberRepository, discount DiscountPolicy) *DefaultOrderService {
	return &DefaultOrderService{members: members, discount: discount}
}

func (s *DefaultOrderService) CreateOrder(ctx context.Context, memberID int64, itemName string, itemPrice int) (Order, error) {
	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return Order{}, err
	}
	return Order{
		MemberID:      memberID,
		ItemName:      itemName,
		ItemPrice:     itemPrice,
		DiscountPrice: s.discount.Discount(m, itemPrice),
	}, nil
}
