package arangodb

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	driver "github.com/arangodb/go-driver"

	"github.com/syssam/unigraph"
)

// ArangoDB error numbers with a more specific kind than their HTTP status.
var errorNums = map[int]unigraph.ErrorKind{
	1200: unigraph.KindTransactionConflict,  // write-write conflict
	1202: unigraph.KindElementNotFound,      // document not found
	1203: unigraph.KindSchemaViolation,      // collection or view not found
	1207: unigraph.KindDuplicateElement,     // duplicate name
	1210: unigraph.KindDuplicateElement,     // unique constraint violated
	1501: unigraph.KindInvalidQuery,         // query parse
	1500: unigraph.KindTimeout,              // query killed
	1521: unigraph.KindInvalidQuery,         // collection used in query not found
	1620: unigraph.KindSchemaViolation,      // document does not match collection schema
	1651: unigraph.KindTransactionFailed,    // transaction aborted
	1652: unigraph.KindTransactionFailed,    // collection not declared in transaction
	1653: unigraph.KindTransactionFailed,    // transaction already finished
	1655: unigraph.KindTransactionFailed,    // transaction not found
	11:   unigraph.KindAuthenticationFailed, // forbidden
	1004: unigraph.KindAuthorizationFailed,  // read only
}

// kindOfStatus maps an HTTP status to an error kind. 400 responses are
// classified by message.
func kindOfStatus(status int, msg string) unigraph.ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return unigraph.KindAuthenticationFailed
	case http.StatusForbidden:
		return unigraph.KindAuthorizationFailed
	case http.StatusBadRequest:
		m := strings.ToLower(msg)
		switch {
		case strings.Contains(m, "query"), strings.Contains(m, "aql"), strings.Contains(m, "syntax"):
			return unigraph.KindInvalidQuery
		case strings.Contains(m, "type"):
			return unigraph.KindInvalidPropertyType
		case strings.Contains(m, "schema"):
			return unigraph.KindSchemaViolation
		case strings.Contains(m, "constraint"):
			return unigraph.KindConstraintViolation
		}
		return unigraph.KindInvalidQuery
	case http.StatusNotFound:
		return unigraph.KindElementNotFound
	case http.StatusConflict:
		if strings.Contains(strings.ToLower(msg), "unique") {
			return unigraph.KindDuplicateElement
		}
		return unigraph.KindTransactionConflict
	case http.StatusPreconditionFailed:
		return unigraph.KindConstraintViolation
	case http.StatusUnprocessableEntity:
		return unigraph.KindSchemaViolation
	case http.StatusTooManyRequests, http.StatusInsufficientStorage:
		return unigraph.KindResourceExhausted
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return unigraph.KindServiceUnavailable
	case http.StatusGatewayTimeout:
		return unigraph.KindTimeout
	}
	return unigraph.KindInternal
}

// convert translates a driver error into a *unigraph.Error. Context errors
// are returned as they are.
func convert(err error) error {
	if err == nil {
		return nil
	}
	var ue *unigraph.Error
	switch {
	case errors.As(err, &ue):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	if ae, ok := driver.AsArangoError(err); ok {
		kind, known := errorNums[ae.ErrorNum]
		if !known {
			kind = kindOfStatus(ae.Code, ae.ErrorMessage)
		}
		return &unigraph.Error{Kind: kind, Msg: ae.ErrorMessage, Err: err}
	}
	var ne net.Error
	if errors.As(driver.Cause(err), &ne) && ne.Timeout() {
		return unigraph.WrapError(unigraph.KindTimeout, err)
	}
	if errors.As(driver.Cause(err), &ne) {
		return unigraph.WrapError(unigraph.KindConnectionFailed, err)
	}
	return unigraph.WrapError(unigraph.KindInternal, err)
}
