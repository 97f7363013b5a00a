package pricing

import (
	"github.com/shopspring/decimal"
)

// All monetary math happens on integer cents. decimal is used only for the
// intermediate percentage arithmetic so rounding is explicit, never float.

var hundred = decimal.NewFromInt(100)

// FinalUnitPriceCents applies the better of the product and category offer
// percentages to the base price. Offers never stack.
func FinalUnitPriceCents(basePriceCents, productOfferPercent, categoryOfferPercent int) int {
	offer := productOfferPercent
	if categoryOfferPercent > offer {
		offer = categoryOfferPercent
	}
	if offer <= 0 {
		return basePriceCents
	}
	if offer > 100 {
		offer = 100
	}
	price := decimal.NewFromInt(int64(basePriceCents)).
		Mul(hundred.Sub(decimal.NewFromInt(int64(offer)))).
		Div(hundred)
	return int(price.Round(0).IntPart())
}

// CouponDiscountCents computes the order-level coupon discount: percent of the
// eligible subtotal, clamped to maxDiscountCents when the cap is set (> 0) and
// never more than the subtotal itself.
func CouponDiscountCents(eligibleSubtotalCents, discountPercent, maxDiscountCents int) int {
	if eligibleSubtotalCents <= 0 || discountPercent <= 0 {
		return 0
	}
	if discountPercent > 100 {
		discountPercent = 100
	}
	d := decimal.NewFromInt(int64(eligibleSubtotalCents)).
		Mul(decimal.NewFromInt(int64(discountPercent))).
		Div(hundred)
	discount := int(d.Round(0).IntPart())
	if maxDiscountCents > 0 && discount > maxDiscountCents {
		discount = maxDiscountCents
	}
	if discount > eligibleSubtotalCents {
		discount = eligibleSubtotalCents
	}
	return discount
}

// SplitProRata distributes totalCents across lines proportionally to their
// weights using the largest-remainder method, so the shares always sum to
// exactly totalCents. Lines with zero weight receive zero.
func SplitProRata(totalCents int, weightsCents []int) []int {
	shares := make([]int, len(weightsCents))
	if totalCents <= 0 || len(weightsCents) == 0 {
		return shares
	}
	var sum int64
	for _, w := range weightsCents {
		if w > 0 {
			sum += int64(w)
		}
	}
	if sum == 0 {
		return shares
	}

	type remainder struct {
		idx  int
		frac decimal.Decimal
	}
	total := decimal.NewFromInt(int64(totalCents))
	denom := decimal.NewFromInt(sum)
	allocated := 0
	rems := make([]remainder, 0, len(weightsCents))
	for i, w := range weightsCents {
		if w <= 0 {
			continue
		}
		exact := total.Mul(decimal.NewFromInt(int64(w))).Div(denom)
		floor := exact.Floor()
		shares[i] = int(floor.IntPart())
		allocated += shares[i]
		rems = append(rems, remainder{idx: i, frac: exact.Sub(floor)})
	}

	// Hand the leftover cents to the largest fractional parts first; ties go
	// to the earlier line so the split is deterministic.
	left := totalCents - allocated
	for left > 0 {
		best := -1
		for j := range rems {
			if best == -1 || rems[j].frac.GreaterThan(rems[best].frac) {
				best = j
			}
		}
		if best == -1 {
			break
		}
		shares[rems[best].idx]++
		rems[best].frac = decimal.Zero.Sub(decimal.NewFromInt(1))
		left--
	}
	return shares
}
