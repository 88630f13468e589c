package orders

const TopicNotifications = "market.notifications"

// Partition key = recipient id so that one inbox sees its events in order.
func PartitionKey(recipientID string) []byte { return []byte(recipientID) }
