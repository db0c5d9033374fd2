package service

import (
	"errors"
	"fmt"
)

// Errores de negocio exportados (los usan el controller y el consumer de Rabbit)
var (
	ErrValidation         = errors.New("datos inválidos")
	ErrEmptyCart          = errors.New("el carrito está vacío")
	ErrOutOfStock         = errors.New("stock insuficiente")
	ErrAmountMismatch     = errors.New("el monto capturado no coincide con la orden")
	ErrNotFound           = errors.New("no encontrado")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("transición de estado inválida")
	ErrConflict           = errors.New("conflicto por actualización concurrente")
	ErrDuplicateRequest   = errors.New("ya hay un pedido en curso con esta clave de idempotencia")
	ErrGatewayUnavailable = errors.New("gateway de pagos no disponible")
	ErrPaymentDeclined    = errors.New("pago rechazado")
	ErrCatalogUnavailable = errors.New("catálogo no disponible")
)

var (
	ErrProductNotFound  = fmt.Errorf("producto %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("orden %w", ErrNotFound)
	ErrCartItemNotFound = fmt.Errorf("producto del carrito %w", ErrNotFound)
)
