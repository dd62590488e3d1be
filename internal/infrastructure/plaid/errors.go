package plaid

import (
	"encoding/json"
	"errors"
	"fmt"
)

const codeProductNotEnabled = "PRODUCT_NOT_ENABLED"

// Error is the error body Plaid returns on any non-200 response.
type Error struct {
	Type           string `json:"error_type"`
	Code           string `json:"error_code"`
	Message        string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("plaid: %s", e.Code)
	}
	return fmt.Sprintf("plaid: %s: %s", e.Code, e.Message)
}

// apiError matches the SDK's GenericOpenAPIError whether it is returned by
// value or by pointer.
type apiError interface {
	error
	Body() []byte
}

// wrap turns an SDK failure into *Error when the body is a Plaid error
// object, and into a plain wrapped error otherwise (transport failures,
// gateway pages).
func wrap(endpoint string, err error) error {
	var ae apiError
	if errors.As(err, &ae) {
		perr := &Error{}
		if json.Unmarshal(ae.Body(), perr) == nil && perr.Code != "" {
			return perr
		}
		return fmt.Errorf("plaid %s failed: %s: %s", endpoint, ae.Error(), string(ae.Body()))
	}
	return fmt.Errorf("plaid %s failed: %w", endpoint, err)
}

// IsProductNotEnabled reports whether err is Plaid's PRODUCT_NOT_ENABLED,
// which means the item was never linked with the requested product.
func IsProductNotEnabled(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Code == codeProductNotEnabled
}

// Message returns the user-facing Plaid text when err carries one: the
// display message, else the error message. Other errors yield fallback.
func Message(err error, fallback string) string {
	var perr *Error
	if errors.As(err, &perr) {
		if perr.DisplayMessage != "" {
			return perr.DisplayMessage
		}
		if perr.Message != "" {
			return perr.Message
		}
	}
	return fallback
}
