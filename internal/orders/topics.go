package orders

// Semua event lifecycle order ada di satu topic supaya urutan per order terjaga.
const TopicOrderEvents = "storefront.order.events"

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
