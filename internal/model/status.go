package model

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderInProcess  OrderStatus = "inProcess"
	OrderInShipping OrderStatus = "inShipping"
	OrderDelivered  OrderStatus = "delivered"
	OrderRejected   OrderStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodPayPal PaymentMethod = "paypal"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodPayPal
}

// Actor identifica quién pide la transición.
type Actor int

const (
	ActorAdmin Actor = iota
	ActorCapture
)

var validStatuses = map[OrderStatus]bool{
	OrderPending:    true,
	OrderConfirmed:  true,
	OrderInProcess:  true,
	OrderInShipping: true,
	OrderDelivered:  true,
	OrderRejected:   true,
}

func (s OrderStatus) Valid() bool {
	return validStatuses[s]
}

// Estados finales
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderRejected
}

var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderRejected},
	OrderConfirmed:  {OrderInProcess, OrderRejected},
	OrderInProcess:  {OrderInShipping, OrderRejected},
	OrderInShipping: {OrderDelivered, OrderRejected},
}

// CanTransition indica si actor puede mover una orden de un estado a otro.
// pending -> confirmed es solo de la captura, y la captura no mueve la orden a
// ningún otro estado.
func CanTransition(from, to OrderStatus, actor Actor) bool {
	if from == OrderPending && to == OrderConfirmed {
		return actor == ActorCapture
	}
	if actor == ActorCapture {
		return false
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses lista los estados a los que un admin puede llevar s.
func NextStatuses(s OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, to := range transitions[s] {
		if CanTransition(s, to, ActorAdmin) {
			out = append(out, to)
		}
	}
	return out
}
