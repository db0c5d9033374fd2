package payment

import (
	"context"
	"errors"
)

// ErrDeclined significa que el gateway respondió y rechazó la operación.
// Cualquier otro error deja el resultado desconocido.
var ErrDeclined = errors.New("payment declined")

type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, rc ReturnContext) (*Intent, error)
	CaptureIntent(ctx context.Context, paymentReference, payerReference string) (*Capture, error)
}

// ReturnContext le dice al gateway a dónde mandar al cliente después de aprobar.
type ReturnContext struct {
	OrderID   string
	ReturnURL string
	CancelURL string
}

type Intent struct {
	ApprovalReference string `json:"approvalReference"`
	ApprovalURL       string `json:"approvalUrl"`
}

// Capture es la prueba de cobro del gateway. OrderID repite la referencia con
// la que se creó el intent, cuando el gateway la informa.
type Capture struct {
	CaptureID string `json:"captureId"`
	Amount    int64  `json:"amount"`
	OrderID   string `json:"orderId,omitempty"`
}
