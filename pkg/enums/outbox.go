package enums

// OutboxEventType names the domain events published through the outbox.
type OutboxEventType string

const (
	EventOrderPaid   OutboxEventType = "order.paid"
	EventOrderFailed OutboxEventType = "order.payment_failed"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)
