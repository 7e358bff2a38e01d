package orders

import "github.com/shopspring/decimal"

// TaxCalculator computes the tax owed on an order subtotal. Digital goods are
// currently sold tax-inclusive, so the default implementation returns zero.
type TaxCalculator interface {
	Tax(subtotal decimal.Decimal) decimal.Decimal
}

// ZeroTax charges no tax on top of the subtotal.
type ZeroTax struct{}

func (ZeroTax) Tax(decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}
