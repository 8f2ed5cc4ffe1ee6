package types

import "encoding/json"

// Envelope is the success body shared by the API and the storefront client.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// SuccessEnvelope is what handlers write; clients decode into Envelope[RawData] or a
// concrete Envelope[T].
type SuccessEnvelope = Envelope[any]

// RawData defers decoding of the data field.
type RawData = json.RawMessage

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Empty reports whether the body carried no recognisable error.
func (e ErrorEnvelope) Empty() bool {
	return e.Error.Code == ""
}
