package pricing

import (
	"fmt"
	"strings"
)

// ErrModelNotLoaded is returned by every operation when the startup
// artifact load failed.
var ErrModelNotLoaded = &ModelNotLoadedError{}

type ModelNotLoadedError struct{}

func (e *ModelNotLoadedError) Error() string { return "modèle non chargé" }

// MissingFieldsError reports required request fields that were absent.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "caractéristiques manquantes: " + strings.Join(e.Fields, ", ")
}

// DomainError reports an unrecognized domain name or out-of-range code.
type DomainError struct {
	Message      string
	ValidDomains []string
}

func (e *DomainError) Error() string { return e.Message }

// CoercionError reports a value that could not be parsed as a number or
// a domain that could not be encoded.
type CoercionError struct {
	Field string
	Value interface{}
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("erreur de conversion numérique: %s=%v", e.Field, e.Value)
}

// ValidationError aggregates business-rule violations; all violations
// are reported together, not just the first.
type ValidationError struct {
	Details []string
	Values  map[string]float64
}

func (e *ValidationError) Error() string {
	return "erreurs de validation: " + strings.Join(e.Details, "; ")
}

// InternalError wraps an unexpected failure during inference or
// response assembly.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return "erreur interne lors de la prédiction: " + e.Err.Error()
}

func (e *InternalError) Unwrap() error { return e.Err }
