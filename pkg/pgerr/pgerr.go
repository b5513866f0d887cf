// Package pgerr defines the error taxonomy shared by every solver
// package. Errors are *Error values built with New, or with Wrap when a
// lower-level cause is kept reachable through Unwrap.
package pgerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy.
type Kind int

const (
	// IDNotFound: a referenced component id is not in the input set.
	IDNotFound Kind = iota
	// IDWrongType: a sensor measures an object of incompatible type.
	IDWrongType
	// ConflictID: duplicate id on input.
	ConflictID
	// ConflictVoltage: branch terminals at incompatible rated voltages.
	ConflictVoltage
	// InvalidBranch: from == to or otherwise malformed branch.
	InvalidBranch
	// InvalidTransformerClock: clock number out of range or wrong parity.
	InvalidTransformerClock
	// InvalidShortCircuitType: fault type not supported.
	InvalidShortCircuitType
	// InvalidShortCircuitPhaseOrType: fault phase not valid for its type.
	InvalidShortCircuitPhaseOrType
	// MissingCaseForEnum: internal dispatch saw an unexpected enum value.
	// This represents a bug, not a user error, and must never occur on a
	// correct dispatch table.
	MissingCaseForEnum
	// SparseMatrixError: singular matrix encountered during LU.
	SparseMatrixError
	// IterationDiverge: iteration count reached max_iter without convergence.
	IterationDiverge
	// NotImplemented: asymmetric (or otherwise unsupported) operation
	// called on a component type that does not support it.
	NotImplemented
	// BatchCalculationError: one or more batch entries failed.
	BatchCalculationError
)

func (k Kind) String() string {
	switch k {
	case IDNotFound:
		return "IDNotFound"
	case IDWrongType:
		return "IDWrongType"
	case ConflictID:
		return "ConflictID"
	case ConflictVoltage:
		return "ConflictVoltage"
	case InvalidBranch:
		return "InvalidBranch"
	case InvalidTransformerClock:
		return "InvalidTransformerClock"
	case InvalidShortCircuitType:
		return "InvalidShortCircuitType"
	case InvalidShortCircuitPhaseOrType:
		return "InvalidShortCircuitPhaseOrType"
	case MissingCaseForEnum:
		return "MissingCaseForEnum"
	case SparseMatrixError:
		return "SparseMatrixError"
	case IterationDiverge:
		return "IterationDiverge"
	case NotImplemented:
		return "NotImplementedError"
	case BatchCalculationError:
		return "BatchCalculationError"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error type carried by Kind. Use errors.As to
// recover it and branch on Kind from caller code (batch drivers,
// CLI front-ends).
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around a lower-level cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: cause}
}

// Is reports whether err is a *Error of the given kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
