package enums

import "fmt"

// OrderItemStatus tracks the per-line lifecycle within a confirmed order.
//
// active -> cancelled                                  (user, pre-shipment)
// active -> return_requested -> returned | return_rejected (admin decision)
type OrderItemStatus string

const (
	OrderItemStatusActive          OrderItemStatus = "active"
	OrderItemStatusCancelled       OrderItemStatus = "cancelled"
	OrderItemStatusReturnRequested OrderItemStatus = "return_requested"
	OrderItemStatusReturned        OrderItemStatus = "returned"
	OrderItemStatusReturnRejected  OrderItemStatus = "return_rejected"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusActive,
	OrderItemStatusCancelled,
	OrderItemStatusReturnRequested,
	OrderItemStatusReturned,
	OrderItemStatusReturnRejected,
}

// String implements fmt.Stringer.
func (o OrderItemStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (o OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// Refunded reports whether the item's paid share has been returned to the wallet.
func (o OrderItemStatus) Refunded() bool {
	return o == OrderItemStatusCancelled || o == OrderItemStatusReturned
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
