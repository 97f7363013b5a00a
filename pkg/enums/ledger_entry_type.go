package enums

import "fmt"

// LedgerEntryType classifies an immutable wallet ledger entry.
type LedgerEntryType string

const (
	LedgerEntryTypeOrderDebit     LedgerEntryType = "order_debit"
	LedgerEntryTypeRefundCredit   LedgerEntryType = "refund_credit"
	LedgerEntryTypeReferralCredit LedgerEntryType = "referral_credit"
	LedgerEntryTypeTopUpCredit    LedgerEntryType = "topup_credit"
	LedgerEntryTypeAdjustment     LedgerEntryType = "adjustment"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeOrderDebit,
	LedgerEntryTypeRefundCredit,
	LedgerEntryTypeReferralCredit,
	LedgerEntryTypeTopUpCredit,
	LedgerEntryTypeAdjustment,
}

// String implements fmt.Stringer.
func (t LedgerEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LedgerEntryType.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
