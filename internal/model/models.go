// models.go
package model

import "time"

type CartItem struct {
	ProductID string    `bson:"product_id" json:"productId"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"addedAt"`
}

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id"`
	UserID    string     `bson:"user_id" json:"userId"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Item devuelve la línea de productID, si existe.
func (c *Cart) Item(productID string) (CartItem, bool) {
	if c == nil {
		return CartItem{}, false
	}
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

// Address se congela en la orden al crearla.
type Address struct {
	AddressLine string `bson:"address_line" json:"addressLine"`
	City        string `bson:"city" json:"city"`
	PostalCode  string `bson:"postal_code" json:"postalCode"`
	Phone       string `bson:"phone" json:"phone"`
	Notes       string `bson:"notes,omitempty" json:"notes,omitempty"`
}

type OrderLine struct {
	ProductID string `bson:"product_id" json:"productId"`
	Title     string `bson:"title" json:"title"`
	Image     string `bson:"image" json:"image"`
	UnitPrice int64  `bson:"unit_price" json:"unitPrice"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

func (l OrderLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

type Order struct {
	ID               string         `bson:"_id" json:"id"`
	UserID           string         `bson:"user_id" json:"userId"`
	Lines            []OrderLine    `bson:"lines" json:"lines"`
	Address          Address        `bson:"address" json:"address"`
	OrderStatus      OrderStatus    `bson:"order_status" json:"orderStatus"`
	PaymentStatus    PaymentStatus  `bson:"payment_status" json:"paymentStatus"`
	PaymentMethod    PaymentMethod  `bson:"payment_method" json:"paymentMethod"`
	PaymentReference string         `bson:"payment_reference,omitempty" json:"paymentReference,omitempty"`
	PayerReference   string         `bson:"payer_reference,omitempty" json:"payerReference,omitempty"`
	TotalAmount      int64          `bson:"total_amount" json:"totalAmount"`
	CartCleared      bool           `bson:"cart_cleared" json:"-"`
	// Productos ya descontados del carrito por una limpieza interrumpida.
	CartClearedLines []string `bson:"cart_cleared_lines,omitempty" json:"-"`
	// Vencimiento del lease de quien está limpiando el carrito.
	CartClearLease *time.Time `bson:"cart_clear_lease,omitempty" json:"-"`
	History          []StatusRecord `bson:"history" json:"history"`
	CreatedAt        time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `bson:"updated_at" json:"updatedAt"`
}

// Total suma los subtotales. Solo se usa al armar la orden; después manda el
// TotalAmount guardado.
func Total(lines []OrderLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

// PendingCartLines devuelve las líneas que todavía no se descontaron del carrito.
func (o *Order) PendingCartLines() []OrderLine {
	done := make(map[string]bool, len(o.CartClearedLines))
	for _, id := range o.CartClearedLines {
		done[id] = true
	}
	out := make([]OrderLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		if !done[l.ProductID] {
			out = append(out, l)
		}
	}
	return out
}

type StatusRecord struct {
	Status    OrderStatus `bson:"status" json:"status"`
	Reason    string      `bson:"reason" json:"reason"`
	ActorID   string      `bson:"actor" json:"actorId"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
}
