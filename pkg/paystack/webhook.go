package paystack

import (
	"encoding/json"
	"fmt"
)

// EventChargeSuccess is the only webhook event that confirms a payment.
const EventChargeSuccess = "charge.success"

// Event is an inbound webhook delivery.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

// ConfirmsPayment reports whether the event settles a charge.
func (e Event) ConfirmsPayment() bool {
	return e.Event == EventChargeSuccess && (e.Data.Status == "" || e.Data.Status == StatusSuccess)
}

// ParseEvent decodes a webhook body. The signature must be checked first.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &event, nil
}
