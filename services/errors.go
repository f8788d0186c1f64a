package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Kind classifies an error by how the caller should react to it.
type Kind int

const (
	KindFatal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	}
	return "fatal"
}

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindForbidden:
		return fiber.StatusForbidden
	case KindConflict:
		return fiber.StatusConflict
	case KindTransient:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// Error is the service-level error carried up to handlers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind and message so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newError(KindValidation, format, args...) }
func NotFound(format string, args ...any) error   { return newError(KindNotFound, format, args...) }
func Forbidden(format string, args ...any) error  { return newError(KindForbidden, format, args...) }
func Conflict(format string, args ...any) error   { return newError(KindConflict, format, args...) }

// Transient wraps an infrastructure failure that is safe to retry.
func Transient(err error, format string, args ...any) error {
	e := newError(KindTransient, format, args...)
	e.Err = err
	return e
}

// Fatal wraps a failure that must not be retried automatically.
func Fatal(err error, format string, args ...any) error {
	e := newError(KindFatal, format, args...)
	e.Err = err
	return e
}

var (
	ErrInsufficientShares   = &Error{Kind: KindValidation, Message: "insufficient shares"}
	ErrInsufficientFunds    = &Error{Kind: KindValidation, Message: "insufficient funds"}
	ErrNoPosition           = &Error{Kind: KindValidation, Message: "no position in symbol"}
	ErrInvalidQuantity      = &Error{Kind: KindValidation, Message: "invalid quantity"}
	ErrInvalidPrice         = &Error{Kind: KindValidation, Message: "invalid price"}
	ErrPriceOutOfBand       = &Error{Kind: KindValidation, Message: "price too far from the market quote"}
	ErrInstrumentNotAllowed = &Error{Kind: KindValidation, Message: "instrument not allowed in this tournament"}
	ErrAllocationExceeded   = &Error{Kind: KindValidation, Message: "single stock allocation limit exceeded"}
	ErrOutsideTradingHours  = &Error{Kind: KindValidation, Message: "outside trading hours"}
	ErrTradingClosed        = &Error{Kind: KindConflict, Message: "tournament is not open for trading"}
	ErrTradeInProgress      = &Error{Kind: KindConflict, Message: "another trade is in progress"}
	ErrAlreadySettling      = &Error{Kind: KindConflict, Message: "already settling"}
	ErrNotSettleable        = &Error{Kind: KindConflict, Message: "tournament cannot be settled in its current state"}
	ErrTournamentNotFound   = &Error{Kind: KindNotFound, Message: "tournament not found"}
	ErrNotParticipant       = &Error{Kind: KindNotFound, Message: "user is not a participant"}
	ErrAdminRequired        = &Error{Kind: KindForbidden, Message: "admin role required"}
)

// KindOf returns the kind of err, treating unknown errors as fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	return KindFatal
}

// wrapDB turns a gorm error into a service error, keeping record-not-found distinct.
func wrapDB(err error, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Message: what + " not found", Err: err}
	}
	return Transient(err, "database error while loading %s", what)
}

// respondError writes err in the gateway's {"error", "cause"} shape.
func respondError(c *fiber.Ctx, err error) error {
	kind := KindOf(err)
	body := fiber.Map{"error": err.Error(), "kind": kind.String()}

	var e *Error
	if errors.As(err, &e) {
		body["error"] = e.Message
		if e.Err != nil {
			body["cause"] = e.Err.Error()
		}
	}

	switch kind {
	case KindFatal:
		logrus.WithError(err).WithField("path", c.Path()).Error("🔥 [API] Fatal error, operator attention required")
	case KindTransient:
		logrus.WithError(err).WithField("path", c.Path()).Warn("⚠️ [API] Transient failure")
		c.Set(fiber.HeaderRetryAfter, "5")
	}
	return c.Status(kind.Status()).JSON(body)
}
