package errors

import (
	"fmt"
)

// StockShortage is the client-visible payload attached to INSUFFICIENT_STOCK errors.
type StockShortage struct {
	Product   string `json:"product"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func InsufficientStock(product string, available, requested int) *Error {
	msg := fmt.Sprintf("Insufficient stock for '%s'. Available: %d, requested: %d", product, available, requested)
	return New(CodeInsufficientStock, msg).WithDetails(StockShortage{
		Product:   product,
		Available: available,
		Requested: requested,
	})
}

// AmountShortfall is attached to PAYMENT_AMOUNT_MISMATCH errors, amounts in minor units.
type AmountShortfall struct {
	Reference string `json:"reference"`
	Expected  int64  `json:"expected"`
	Received  int64  `json:"received"`
}

func AmountMismatch(reference string, expected, received int64) *Error {
	return New(CodeAmountMismatch, "payment amount mismatch").WithDetails(AmountShortfall{
		Reference: reference,
		Expected:  expected,
		Received:  received,
	})
}

func PaymentGateway(err error, message string) *Error {
	return Wrap(CodePaymentGateway, err, message)
}

// IsCode reports whether err carries the given typed code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
