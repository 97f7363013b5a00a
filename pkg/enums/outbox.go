package enums

import "fmt"

// OutboxStatus tracks delivery progress of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

var validOutboxStatuses = []OutboxStatus{
	OutboxStatusPending,
	OutboxStatusPublished,
	OutboxStatusFailed,
}

// IsValid reports whether the value is a known OutboxStatus.
func (o OutboxStatus) IsValid() bool {
	for _, candidate := range validOutboxStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxStatus converts raw input into an OutboxStatus.
func ParseOutboxStatus(value string) (OutboxStatus, error) {
	for _, candidate := range validOutboxStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox status %q", value)
}

// OutboxEventType names a domain event recorded in the outbox.
type OutboxEventType string

const (
	EventOrderConfirmed       OutboxEventType = "order.confirmed"
	EventOrderPaymentFailed   OutboxEventType = "order.payment_failed"
	EventPaymentRefundPending OutboxEventType = "payment.refund_pending"
	EventOrderItemCancelled   OutboxEventType = "order.item_cancelled"
	EventOrderItemReturned    OutboxEventType = "order.item_returned"
	EventReferralRewarded     OutboxEventType = "referral.rewarded"
)

// OutboxAggregateType names the entity an outbox event is anchored to.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregatePaymentAttempt OutboxAggregateType = "payment_attempt"
)
