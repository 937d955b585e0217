package gremlin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/syssam/unigraph"
)

// Gremlin Server response status codes.
const (
	statusSuccess          = 200
	statusNoContent        = 204
	statusPartialContent   = 206
	statusUnauthorized     = 401
	statusForbidden        = 403
	statusAuthenticate     = 407
	statusMalformedRequest = 498
	statusInvalidArguments = 499
	statusServerError      = 500
	statusFailStep         = 595
	statusTemporary        = 596
	statusEvaluation       = 597
	statusTimeout          = 598
	statusSerialization    = 599
)

// ServerError is a non-success response of Gremlin Server.
type ServerError struct {
	Code       int
	Message    string
	Exceptions []string // Java exception class names, innermost last.
}

func (e *ServerError) Error() string {
	if len(e.Exceptions) > 0 {
		return fmt.Sprintf("gremlin: status %d: %s (%s)", e.Code, e.Message, e.Exceptions[len(e.Exceptions)-1])
	}
	return fmt.Sprintf("gremlin: status %d: %s", e.Code, e.Message)
}

// Exception name fragments classified before the status code.
var exceptions = []struct {
	fragment string
	kind     unigraph.ErrorKind
}{
	{"SchemaViolationException", unigraph.KindSchemaViolation},
	{"PermanentLockingException", unigraph.KindTransactionConflict},
	{"TemporaryLockingException", unigraph.KindTransactionConflict},
	{"TemporaryBackendException", unigraph.KindServiceUnavailable},
	{"MissingPropertyException", unigraph.KindInvalidQuery},
	{"MultipleCompilationErrorsException", unigraph.KindInvalidQuery},
	{"MissingMethodException", unigraph.KindInvalidQuery},
	{"NoSuchElementException", unigraph.KindElementNotFound},
	{"TimeoutException", unigraph.KindTimeout},
	{"OutOfMemoryError", unigraph.KindResourceExhausted},
}

// Message fragments classified when no exception name matched.
var messages = []struct {
	fragment string
	kind     unigraph.ErrorKind
}{
	{"already exists", unigraph.KindDuplicateElement},
	{"already been defined", unigraph.KindDuplicateElement},
	{"is not defined", unigraph.KindSchemaViolation},
	{"unique", unigraph.KindConstraintViolation},
	{"locking", unigraph.KindTransactionConflict},
	{"property value", unigraph.KindInvalidPropertyType},
	{"data type", unigraph.KindInvalidPropertyType},
	{"transaction is closed", unigraph.KindTransactionFailed},
	{"transaction already closed", unigraph.KindTransactionFailed},
	{"session", unigraph.KindTransactionFailed},
}

// kindOf classifies a server error.
func kindOf(e *ServerError) unigraph.ErrorKind {
	switch e.Code {
	case statusUnauthorized:
		return unigraph.KindAuthenticationFailed
	case statusForbidden:
		return unigraph.KindAuthorizationFailed
	case statusMalformedRequest, statusInvalidArguments:
		return unigraph.KindInvalidQuery
	case statusTimeout:
		return unigraph.KindTimeout
	case statusTemporary:
		return unigraph.KindServiceUnavailable
	case statusSerialization:
		return unigraph.KindInternal
	}
	for _, x := range e.Exceptions {
		for _, c := range exceptions {
			if strings.Contains(x, c.fragment) {
				return c.kind
			}
		}
	}
	msg := strings.ToLower(e.Message)
	for _, c := range messages {
		if strings.Contains(msg, c.fragment) {
			return c.kind
		}
	}
	if e.Code == statusEvaluation && strings.Contains(msg, "syntax") {
		return unigraph.KindInvalidQuery
	}
	return unigraph.KindInternal
}

// convert translates a transport or server error into a *unigraph.Error.
// Context errors are returned as they are.
func convert(err error) error {
	if err == nil {
		return nil
	}
	var (
		ue *unigraph.Error
		se *ServerError
		ne net.Error
		ce *websocket.CloseError
	)
	switch {
	case errors.As(err, &ue):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &se):
		return &unigraph.Error{Kind: kindOf(se), Msg: se.Message, Err: err}
	case errors.Is(err, websocket.ErrBadHandshake):
		return unigraph.WrapError(unigraph.KindConnectionFailed, err)
	case errors.As(err, &ne) && ne.Timeout():
		return unigraph.WrapError(unigraph.KindTimeout, err)
	case errors.As(err, &ne), errors.As(err, &ce):
		return unigraph.WrapError(unigraph.KindConnectionFailed, err)
	}
	return unigraph.WrapError(unigraph.KindInternal, err)
}
