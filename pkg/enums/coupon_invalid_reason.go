package enums

// CouponInvalidReason explains why a coupon was rejected during quoting or
// confirmation. Values surface verbatim in error details.
type CouponInvalidReason string

const (
	CouponInvalidExpired            CouponInvalidReason = "expired"
	CouponInvalidUsageLimitExceeded CouponInvalidReason = "usage-limit-exceeded"
	CouponInvalidMinimumNotMet      CouponInvalidReason = "minimum-not-met"
	CouponInvalidNotApplicable      CouponInvalidReason = "not-applicable-to-items"
)

// String implements fmt.Stringer.
func (r CouponInvalidReason) String() string {
	return string(r)
}
