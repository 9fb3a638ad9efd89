package orders

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// CodeGenerator issues the human-facing identifiers printed on receipts.
type CodeGenerator interface {
	OrderNumber(now time.Time) string
	PickupCode() string
}

type randomCodes struct {
	brand string
}

// NewCodeGenerator returns a generator whose order numbers look like
// JM202610190427: brand, order date (UTC), then four random digits.
func NewCodeGenerator(brand string) CodeGenerator {
	return randomCodes{brand: strings.ToUpper(strings.TrimSpace(brand))}
}

func (g randomCodes) OrderNumber(now time.Time) string {
	return fmt.Sprintf("%s%s%04d", g.brand, now.UTC().Format("20060102"), rand.IntN(10000))
}

// PickupCode is shown to the customer and checked at handover; it is not unique.
func (g randomCodes) PickupCode() string {
	return fmt.Sprintf("%06d", rand.IntN(1000000))
}
