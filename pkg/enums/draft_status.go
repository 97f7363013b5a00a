package enums

import "fmt"

// DraftStatus tracks the lifecycle of a checkout draft.
type DraftStatus string

const (
	DraftStatusPending  DraftStatus = "pending"
	DraftStatusConsumed DraftStatus = "consumed"
	DraftStatusExpired  DraftStatus = "expired"
)

var validDraftStatuses = []DraftStatus{
	DraftStatusPending,
	DraftStatusConsumed,
	DraftStatusExpired,
}

// String implements fmt.Stringer.
func (d DraftStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DraftStatus.
func (d DraftStatus) IsValid() bool {
	for _, candidate := range validDraftStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDraftStatus converts raw input into a DraftStatus.
func ParseDraftStatus(value string) (DraftStatus, error) {
	for _, candidate := range validDraftStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid draft status %q", value)
}
