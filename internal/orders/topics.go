package orders

// TopicOrderNotifications carries every customer-facing order event; the type is in the envelope.
const TopicOrderNotifications = "order.notifications"

// Partition key = order_id so events of one order stay in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
