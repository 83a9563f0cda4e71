// Package apperr is the error taxonomy shared by every service in the module.
// Handlers translate an *Error into an HTTP status and a stable machine code;
// anything that is not an *Error is treated as an integrity failure.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindIntegrity Kind = iota
	KindNotFound
	KindUnauthorized
	KindValidation
	KindBusinessRule
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation_failure"
	case KindBusinessRule:
		return "business_rule_violation"
	case KindExternal:
		return "external_service_failure"
	default:
		return "integrity_failure"
	}
}

// Stable reason codes surfaced to clients.
const (
	CodeCartNotFound        = "cart_not_found"
	CodeCartItemNotFound    = "cart_item_not_found"
	CodeCartEmpty           = "cart_empty"
	CodeProductNotFound     = "product_not_found"
	CodeProductUnavailable  = "product_unavailable"
	CodeInsufficientStock   = "insufficient_stock"
	CodeOrderNotFound       = "order_not_found"
	CodePaymentNotFound     = "payment_not_found"
	CodeForbidden           = "forbidden"
	CodeInvalidRequest      = "invalid_request"
	CodeAlreadyCancelled    = "order_already_cancelled"
	CodeRefundNotAllowed    = "refund_not_allowed"
	CodeInvalidTransition   = "invalid_transition"
	CodePaymentNotCompleted = "payment_not_completed"
	CodeProcessorError      = "payment_processor_error"
	CodeInvalidSignature    = "invalid_signature"
	CodeInvalidPayload      = "invalid_payload"
	CodeIntegrity           = "internal_error"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// With returns a copy of e carrying an extra detail entry.
func (e *Error) With(key, value string) *Error {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error { return New(KindNotFound, code, msg) }

func Unauthorized(msg string) *Error { return New(KindUnauthorized, CodeForbidden, msg) }

func Validation(msg string) *Error { return New(KindValidation, CodeInvalidRequest, msg) }

func BusinessRule(code, msg string) *Error { return New(KindBusinessRule, code, msg) }

func External(code, msg string, err error) *Error {
	return &Error{Kind: KindExternal, Code: code, Message: msg, Err: err}
}

// Integrity wraps an unexpected persistence error.
func Integrity(op string, err error) *Error {
	return &Error{Kind: KindIntegrity, Code: CodeIntegrity, Message: op, Err: err}
}

// As extracts the *Error from err, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return KindIntegrity
}

func CodeOf(err error) string {
	if e := As(err); e != nil {
		return e.Code
	}
	return CodeIntegrity
}

// HasCode reports whether err carries the given reason code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Wrap keeps *Error values intact and turns anything else into an integrity failure.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if As(err) != nil {
		return err
	}
	return Integrity(op, err)
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindValidation, KindBusinessRule:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
