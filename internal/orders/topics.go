package orders

const (
	TopicOrderPlaced    = "shop.order.placed"
	TopicOrderPaid      = "shop.order.paid"
	TopicOrderCancelled = "shop.order.cancelled"
)

// TopicFor maps an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderPaid:
		return TopicOrderPaid
	case EventOrderCancelled:
		return TopicOrderCancelled
	default:
		return TopicOrderPlaced
	}
}

// Partition key = order_id so every event of one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
