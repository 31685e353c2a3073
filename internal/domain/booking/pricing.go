package booking

import "math"

// Platform charges applied at quote time. Amounts are whole Kenyan shillings.
const (
	platformFeeRate = 0.05 // 5% of base + service charge
	taxRate         = 0.16 // VAT
)

// Pricing is the full price breakdown for a booking. TotalAmount is the
// amount the customer owes; it is only rewritten by an accepted counter-offer.
type Pricing struct {
	BasePrice     int64  `json:"base_price"`
	ServiceCharge int64  `json:"service_charge"`
	PlatformFee   int64  `json:"platform_fee"`
	Tax           int64  `json:"tax"`
	Discount      int64  `json:"discount"`
	TotalAmount   int64  `json:"total_amount"`
	Currency      string `json:"currency"`
}

// NewPricing computes the platform fee, tax and total from the quoted base
// price, service charge and discount.
func NewPricing(basePrice, serviceCharge, discount int64, currency string) Pricing {
	subtotal := basePrice + serviceCharge
	platformFee := roundAmount(float64(subtotal) * platformFeeRate)
	tax := roundAmount(float64(subtotal+platformFee) * taxRate)

	return Pricing{
		BasePrice:     basePrice,
		ServiceCharge: serviceCharge,
		PlatformFee:   platformFee,
		Tax:           tax,
		Discount:      discount,
		TotalAmount:   basePrice + serviceCharge + platformFee + tax - discount,
		Currency:      currency,
	}
}

// RescaledTo returns the breakdown scaled so the total equals proposedAmount.
// Each component is scaled by proposedAmount/TotalAmount and rounded
// independently; the discount carries over unchanged and TotalAmount is set
// to the literal proposed amount rather than re-derived from the scaled
// parts, so the parts may not sum exactly to the total.
func (p Pricing) RescaledTo(proposedAmount int64) Pricing {
	ratio := float64(proposedAmount) / float64(p.TotalAmount)
	return Pricing{
		BasePrice:     roundAmount(float64(p.BasePrice) * ratio),
		ServiceCharge: roundAmount(float64(p.ServiceCharge) * ratio),
		PlatformFee:   roundAmount(float64(p.PlatformFee) * ratio),
		Tax:           roundAmount(float64(p.Tax) * ratio),
		Discount:      p.Discount,
		TotalAmount:   proposedAmount,
		Currency:      p.Currency,
	}
}

func roundAmount(v float64) int64 {
	return int64(math.Round(v))
}
