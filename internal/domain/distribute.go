package domain

// Allocation is one order's share of a picking item, in the order the
// orders were added to the route.
type Allocation struct {
	OrderID     string `bson:"orderId" json:"orderId"`
	OrderNumber string `bson:"orderNumber" json:"orderNumber"`
	Quantity    int64  `bson:"quantity" json:"quantity"`
	Remaining   int64  `bson:"remaining" json:"remaining"`
}

// Consumption is how much of a scan was credited to one order
type Consumption struct {
	OrderID  string `json:"orderId"`
	Quantity int64  `json:"quantity"`
}

// Distribute credits qty to allocations first-in first-out: the earliest
// order's remaining requirement is drained before the next one is touched.
// The input slice is not modified. Any quantity left over once every
// allocation is drained is returned as leftover.
func Distribute(qty int64, allocations []Allocation) (updated []Allocation, consumed []Consumption, leftover int64) {
	updated = make([]Allocation, len(allocations))
	copy(updated, allocations)

	remaining := qty
	for i := range updated {
		if remaining <= 0 {
			break
		}
		if updated[i].Remaining <= 0 {
			continue
		}
		take := min(remaining, updated[i].Remaining)
		updated[i].Remaining -= take
		remaining -= take
		consumed = append(consumed, Consumption{OrderID: updated[i].OrderID, Quantity: take})
	}
	return updated, consumed, remaining
}
