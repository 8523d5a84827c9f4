package cart

import "sort"

// Cart maps a product id to a positive quantity.
type Cart map[string]int

// Quantity returns the stored quantity or zero.
func (c Cart) Quantity(productID string) int {
	return c[productID]
}

// TotalItems sums every quantity.
func (c Cart) TotalItems() int {
	total := 0
	for _, q := range c {
		total += q
	}
	return total
}

// ProductIDs returns the cart's product ids in lexical order.
func (c Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c))
	for id, q := range c {
		out[id] = q
	}
	return out
}

// sanitize drops entries that could only come from a tampered or stale value.
func sanitize(c Cart) Cart {
	out := make(Cart, len(c))
	for id, q := range c {
		if id == "" || q <= 0 {
			continue
		}
		out[id] = q
	}
	return out
}
