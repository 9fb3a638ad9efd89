package paystack

import "strings"

// Reference builds the transaction reference for an order, "<PREFIX>-<order number>".
func Reference(prefix, orderNumber string) string {
	return prefix + "-" + orderNumber
}

// OrderNumber recovers the order number from a reference built by Reference.
// It reports false for references that do not carry the prefix.
func OrderNumber(prefix, reference string) (string, bool) {
	number, ok := strings.CutPrefix(strings.TrimSpace(reference), prefix+"-")
	if !ok || number == "" {
		return "", false
	}
	return number, true
}
