package app

// DiscountPolicy computes the discount for a member buying at price.
type DiscountPolicy interface {
	Discount(m Member, price int) int
}

// FixDiscountPolicy takes a flat amount off for VIP members.
type FixDiscountPolicy struct {
	Amount int
}

func NewFixDiscountPolicy() *FixDiscountPolicy { return &FixDiscountPolicy{Amount: 1000} }

func (p *FixDiscountPolicy) Discount(m Member, _ int) int {
	if m.Grade == GradeVIP {
		return p.Amount
	}
	return 0
}

// RateDiscountPolicy takes a percentage off for VIP members.
type RateDiscountPolicy struct {
	Percent int
}

func NewRateDiscountPolicy() *RateDiscountPolicy { return &RateDiscountPolicy{Percent: 10} }

func (p *RateDiscountPolicy) Discount(m Member, price int) int {
	if m.Grade == GradeVIP {
		return price * p.Percent / 100
	}
	return 0
}
