package domain

// CartLine is one product's entry in the cart. Quantity is always >= 1 while
// the line exists: a decrement that would reach zero removes the line.
type CartLine struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Thumbnail string  `json:"thumbnail"`
	Quantity  int     `json:"quantity"`
}

// AddLine returns a new cart with the item added. When a line with the same
// id already exists its quantity grows by one, otherwise the item is appended
// with quantity 1.
func AddLine(cart []CartLine, item CartLine) []CartLine {
	for i, l := range cart {
		if l.ID == item.ID {
			out := copyCart(cart)
			out[i].Quantity++
			return out
		}
	}
	item.Quantity = 1
	return append(copyCart(cart), item)
}

// IncrementLine returns a new cart with the matching line's quantity grown by
// one. An absent id is a no-op.
func IncrementLine(cart []CartLine, id int) []CartLine {
	out := copyCart(cart)
	for i, l := range out {
		if l.ID == id {
			out[i].Quantity++
		}
	}
	return out
}

// DecrementLine returns a new cart with the matching line's quantity reduced
// by one; a line reaching zero is removed entirely. An absent id is a no-op.
func DecrementLine(cart []CartLine, id int) []CartLine {
	out := make([]CartLine, 0, len(cart))
	for _, l := range cart {
		if l.ID == id {
			l.Quantity--
		}
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}

// RemoveLine returns a new cart without the matching line, regardless of its
// quantity.
func RemoveLine(cart []CartLine, id int) []CartLine {
	out := make([]CartLine, 0, len(cart))
	for _, l := range cart {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}

// ItemCount is the sum of line quantities.
func ItemCount(cart []CartLine) int {
	n := 0
	for _, l := range cart {
		n += l.Quantity
	}
	return n
}

// LineCount is the number of distinct lines.
func LineCount(cart []CartLine) int {
	return len(cart)
}

// TotalPrice recomputes the cart total from scratch: the sum over lines of
// price times quantity.
func TotalPrice(cart []CartLine) float64 {
	total := 0.0
	for _, l := range cart {
		total += l.Price * float64(l.Quantity)
	}
	return total
}

func copyCart(cart []CartLine) []CartLine {
	out := make([]CartLine, len(cart))
	copy(out, cart)
	return out
}
