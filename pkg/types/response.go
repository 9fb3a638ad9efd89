package types

// SuccessEnvelope wraps every successful API payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope renders as {"error": {code, message, details}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Acknowledgement is returned to webhook senders.
type Acknowledgement struct {
	Status string `json:"status"`
}
