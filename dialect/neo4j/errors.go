package neo4j

import (
	"context"
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/syssam/unigraph"
)

// codeKinds maps Neo4j status codes to error kinds. Lookups try the full
// code first, then progressively shorter prefixes.
var codeKinds = map[string]unigraph.ErrorKind{
	"Neo.ClientError.Security.Unauthorized":                              unigraph.KindAuthenticationFailed,
	"Neo.ClientError.Security.AuthenticationRateLimit":                   unigraph.KindAuthenticationFailed,
	"Neo.ClientError.Security.CredentialsExpired":                        unigraph.KindAuthenticationFailed,
	"Neo.ClientError.Security.TokenExpired":                              unigraph.KindAuthenticationFailed,
	"Neo.ClientError.Security.Forbidden":                                 unigraph.KindAuthorizationFailed,
	"Neo.ClientError.Security":                                           unigraph.KindAuthorizationFailed,
	"Neo.ClientError.Schema.ConstraintValidationFailed":                  unigraph.KindConstraintViolation,
	"Neo.ClientError.Schema.EquivalentSchemaRuleAlreadyExists":           unigraph.KindDuplicateElement,
	"Neo.ClientError.Schema.IndexAlreadyExists":                          unigraph.KindDuplicateElement,
	"Neo.ClientError.Schema.ConstraintAlreadyExists":                     unigraph.KindDuplicateElement,
	"Neo.ClientError.Schema.IndexNotFound":                               unigraph.KindElementNotFound,
	"Neo.ClientError.Schema.ConstraintNotFound":                          unigraph.KindElementNotFound,
	"Neo.ClientError.Schema":                                             unigraph.KindSchemaViolation,
	"Neo.ClientError.Statement.TypeError":                                unigraph.KindInvalidPropertyType,
	"Neo.ClientError.Statement.EntityNotFound":                           unigraph.KindElementNotFound,
	"Neo.ClientError.Statement":                                          unigraph.KindInvalidQuery,
	"Neo.ClientError.Transaction.TransactionTimedOut":                    unigraph.KindTransactionTimeout,
	"Neo.ClientError.Transaction.TransactionTimedOutClientConfiguration": unigraph.KindTransactionTimeout,
	"Neo.ClientError.Transaction":                                        unigraph.KindTransactionFailed,
	"Neo.ClientError.Database.DatabaseNotFound":                          unigraph.KindConnectionFailed,
	"Neo.TransientError.Transaction.DeadlockDetected":                    unigraph.KindDeadlockDetected,
	"Neo.TransientError.Transaction.LockAcquisitionTimeout":              unigraph.KindTransactionTimeout,
	"Neo.TransientError.Transaction":                                     unigraph.KindTransactionConflict,
	"Neo.TransientError.General.DatabaseUnavailable":                     unigraph.KindServiceUnavailable,
	"Neo.TransientError.General.OutOfMemoryError":                        unigraph.KindResourceExhausted,
	"Neo.TransientError.General.TransactionMemoryLimit":                  unigraph.KindResourceExhausted,
	"Neo.TransientError.General.MemoryPoolOutOfMemoryError":              unigraph.KindResourceExhausted,
	"Neo.TransientError.Cluster":                                         unigraph.KindServiceUnavailable,
	"Neo.TransientError":                                                 unigraph.KindServiceUnavailable,
	"Neo.DatabaseError.General.OutOfMemoryError":                         unigraph.KindResourceExhausted,
}

// kindOfCode returns the kind of a Neo4j status code.
func kindOfCode(code string) unigraph.ErrorKind {
	for c := code; c != ""; {
		if k, ok := codeKinds[c]; ok {
			return k
		}
		i := strings.LastIndexByte(c, '.')
		if i < 0 {
			break
		}
		c = c[:i]
	}
	return unigraph.KindInternal
}

// convert translates a driver error into a *unigraph.Error. Context errors
// are returned as they are; the client classifies them.
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
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) {
		return &unigraph.Error{Kind: kindOfCode(ne.Code), Msg: ne.Msg, Err: err}
	}
	var te *neo4j.TokenExpiredError
	if errors.As(err, &te) {
		return unigraph.WrapError(unigraph.KindAuthenticationFailed, err)
	}
	if neo4j.IsConnectivityError(err) {
		return unigraph.WrapError(unigraph.KindConnectionFailed, err)
	}
	if neo4j.IsTransactionExecutionLimit(err) {
		return unigraph.WrapError(unigraph.KindTransactionFailed, err)
	}
	var use *neo4j.UsageError
	if errors.As(err, &use) {
		return unigraph.WrapError(unigraph.KindInvalidQuery, err)
	}
	return unigraph.WrapError(unigraph.KindInternal, err)
}
