package unigraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every failure reported by the graph API.
// The set is closed: adapters translate backend faults into exactly one kind.
type ErrorKind uint8

// Error kinds.
const (
	KindInternal ErrorKind = iota
	KindUnsupportedOperation
	KindConnectionFailed
	KindAuthenticationFailed
	KindAuthorizationFailed
	KindElementNotFound
	KindDuplicateElement
	KindSchemaViolation
	KindConstraintViolation
	KindInvalidPropertyType
	KindInvalidQuery
	KindTransactionFailed
	KindTransactionConflict
	KindTransactionTimeout
	KindDeadlockDetected
	KindTimeout
	KindResourceExhausted
	KindServiceUnavailable
)

var kindNames = [...]string{
	KindInternal:             "internal-error",
	KindUnsupportedOperation: "unsupported-operation",
	KindConnectionFailed:     "connection-failed",
	KindAuthenticationFailed: "authentication-failed",
	KindAuthorizationFailed:  "authorization-failed",
	KindElementNotFound:      "element-not-found",
	KindDuplicateElement:     "duplicate-element",
	KindSchemaViolation:      "schema-violation",
	KindConstraintViolation:  "constraint-violation",
	KindInvalidPropertyType:  "invalid-property-type",
	KindInvalidQuery:         "invalid-query",
	KindTransactionFailed:    "transaction-failed",
	KindTransactionConflict:  "transaction-conflict",
	KindTransactionTimeout:   "transaction-timeout",
	KindDeadlockDetected:     "deadlock-detected",
	KindTimeout:              "timeout",
	KindResourceExhausted:    "resource-exhausted",
	KindServiceUnavailable:   "service-unavailable",
}

// String returns the kebab-case name of the kind.
func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Kinds returns every error kind in declaration order.
func Kinds() []ErrorKind {
	kinds := make([]ErrorKind, len(kindNames))
	for i := range kindNames {
		kinds[i] = ErrorKind(i)
	}
	return kinds
}

// Sentinel errors, one per kind. Every *Error matches the sentinel of its
// kind with errors.Is.
var (
	ErrInternal             = errors.New("unigraph: internal error")
	ErrUnsupportedOperation = errors.New("unigraph: unsupported operation")
	ErrConnectionFailed     = errors.New("unigraph: connection failed")
	ErrAuthenticationFailed = errors.New("unigraph: authentication failed")
	ErrAuthorizationFailed  = errors.New("unigraph: authorization failed")
	ErrElementNotFound      = errors.New("unigraph: element not found")
	ErrDuplicateElement     = errors.New("unigraph: duplicate element")
	ErrSchemaViolation      = errors.New("unigraph: schema violation")
	ErrConstraintViolation  = errors.New("unigraph: constraint violation")
	ErrInvalidPropertyType  = errors.New("unigraph: invalid property type")
	ErrInvalidQuery         = errors.New("unigraph: invalid query")
	ErrTransactionFailed    = errors.New("unigraph: transaction failed")
	ErrTransactionConflict  = errors.New("unigraph: transaction conflict")
	ErrTransactionTimeout   = errors.New("unigraph: transaction timeout")
	ErrDeadlockDetected     = errors.New("unigraph: deadlock detected")
	ErrTimeout              = errors.New("unigraph: timeout")
	ErrResourceExhausted    = errors.New("unigraph: resource exhausted")
	ErrServiceUnavailable   = errors.New("unigraph: service unavailable")

	// ErrTxNotActive is returned by every operation invoked on a committed
	// or rolled-back transaction. Its kind is KindTransactionFailed.
	ErrTxNotActive = &Error{Kind: KindTransactionFailed, Msg: "transaction not active"}
)

var sentinels = [...]error{
	KindInternal:             ErrInternal,
	KindUnsupportedOperation: ErrUnsupportedOperation,
	KindConnectionFailed:     ErrConnectionFailed,
	KindAuthenticationFailed: ErrAuthenticationFailed,
	KindAuthorizationFailed:  ErrAuthorizationFailed,
	KindElementNotFound:      ErrElementNotFound,
	KindDuplicateElement:     ErrDuplicateElement,
	KindSchemaViolation:      ErrSchemaViolation,
	KindConstraintViolation:  ErrConstraintViolation,
	KindInvalidPropertyType:  ErrInvalidPropertyType,
	KindInvalidQuery:         ErrInvalidQuery,
	KindTransactionFailed:    ErrTransactionFailed,
	KindTransactionConflict:  ErrTransactionConflict,
	KindTransactionTimeout:   ErrTransactionTimeout,
	KindDeadlockDetected:     ErrDeadlockDetected,
	KindTimeout:              ErrTimeout,
	KindResourceExhausted:    ErrResourceExhausted,
	KindServiceUnavailable:   ErrServiceUnavailable,
}

// Sentinel returns the sentinel error of the kind.
func (k ErrorKind) Sentinel() error {
	if int(k) < len(sentinels) {
		return sentinels[k]
	}
	return ErrInternal
}

// Error is the single error type produced by the graph API and its adapters.
type Error struct {
	Kind ErrorKind
	Op   string     // Operation that failed (e.g. "create-vertex"), optional.
	ID   *ElementID // Element the error refers to, optional.
	Msg  string     // Human readable detail, usually the backend message.
	Err  error      // Underlying error, optional.
}

// Error returns the error string.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("unigraph: ")
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.ID != nil {
		fmt.Fprintf(&sb, " (id=%s)", e.ID)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil && e.Err.Error() != e.Msg {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's kind, or ErrTxNotActive
// for transaction-state errors.
func (e *Error) Is(target error) bool {
	if target == e.Kind.Sentinel() {
		return true
	}
	if t, ok := target.(*Error); ok && t == ErrTxNotActive {
		return e == ErrTxNotActive || (e.Kind == KindTransactionFailed && e.Msg == ErrTxNotActive.Msg)
	}
	return false
}

// WithOp returns a copy of the error annotated with the operation name.
// The receiver is returned unchanged when it already carries an operation.
func (e *Error) WithOp(op string) *Error {
	if e.Op != "" {
		return e
	}
	c := *e
	c.Op = op
	return &c
}

// NewError returns an error of the given kind.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf returns an error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError returns an error of the given kind wrapping err. The message of
// err is kept as context.
func WrapError(kind ErrorKind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: err.Error(), Err: err}
}

// NotFound returns an element-not-found error for the identifier.
func NotFound(id ElementID) *Error {
	return &Error{Kind: KindElementNotFound, ID: &id}
}

// Duplicate returns a duplicate-element error for the identifier.
func Duplicate(id ElementID) *Error {
	return &Error{Kind: KindDuplicateElement, ID: &id}
}

// Unsupported returns an unsupported-operation error naming the feature.
func Unsupported(feature string) *Error {
	return &Error{Kind: KindUnsupportedOperation, Msg: feature}
}

// KindOf returns the kind of err. Errors that were not produced by this
// package are classified as internal errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for i, s := range sentinels {
		if errors.Is(err, s) {
			return ErrorKind(i)
		}
	}
	return KindInternal
}

// IsKind reports whether err is of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// IsNotFound returns true if the error is an element-not-found error.
func IsNotFound(err error) bool {
	return IsKind(err, KindElementNotFound)
}

// IsUnsupported returns true if the error is an unsupported-operation error.
func IsUnsupported(err error) bool {
	return IsKind(err, KindUnsupportedOperation)
}

// IsConstraintViolation returns true if the error is a constraint-violation error.
func IsConstraintViolation(err error) bool {
	return IsKind(err, KindConstraintViolation)
}

// IsTxNotActive returns true if the error reports an operation on a
// transaction that is no longer active.
func IsTxNotActive(err error) bool {
	return err != nil && errors.Is(err, ErrTxNotActive)
}

// IsRetryable reports whether the caller may retry the whole transaction.
// The API itself never retries.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransactionConflict, KindDeadlockDetected, KindTimeout,
		KindTransactionTimeout, KindServiceUnavailable:
		return err != nil
	}
	return false
}

// RollbackError wraps an error that occurred during a transaction rollback
// issued after another failure.
type RollbackError struct {
	Err   error // Rollback failure.
	Cause error // Failure that triggered the rollback.
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unigraph: rollback failed: %v (after: %v)", e.Err, e.Cause)
	}
	return fmt.Sprintf("unigraph: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying errors.
func (e *RollbackError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Cause, e.Err}
	}
	return []error{e.Err}
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "unigraph: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("unigraph: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
