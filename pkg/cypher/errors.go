// Package cypher - error taxonomy.
//
// Static errors (parsing, semantic, schema, plan) surface synchronously from
// Compile/Run. Runtime errors (evaluation, graph model) surface from the
// consuming iterator; partially produced rows are not rolled back. No error
// is silently swallowed. Null-valued operations do not raise; they follow
// Cypher null propagation.
package cypher

import "fmt"

// ParsingError reports malformed query text. No partial AST accompanies it.
type ParsingError struct {
	Message string
}

func (e *ParsingError) Error() string {
	return "parsing error: " + e.Message
}

func parseErrorf(format string, args ...any) *ParsingError {
	return &ParsingError{Message: fmt.Sprintf(format, args...)}
}

// SemanticError reports an unknown variable or a type mismatch detected at
// plan time.
type SemanticError struct {
	Message string
}

func (e *SemanticError) Error() string {
	return "semantic error: " + e.Message
}

func semanticErrorf(format string, args ...any) *SemanticError {
	return &SemanticError{Message: fmt.Sprintf(format, args...)}
}

// SchemaError reports a reference to a column not present in the current
// frame's schema.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: unknown column %q", e.Column)
}

// EvaluationError reports a runtime type error: arithmetic over incompatible
// types, division by zero, or property access on a non-entity.
type EvaluationError struct {
	Expr   string
	Reason string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error in %s: %s", e.Expr, e.Reason)
}

func evalErrorf(expr Expression, format string, args ...any) *EvaluationError {
	return &EvaluationError{Expr: exprString(expr), Reason: fmt.Sprintf(format, args...)}
}

// PlanError reports an AST construct the planner cannot lower.
type PlanError struct {
	Message string
}

func (e *PlanError) Error() string {
	return "plan error: " + e.Message
}

func planErrorf(format string, args ...any) *PlanError {
	return &PlanError{Message: fmt.Sprintf(format, args...)}
}

// GraphModelError wraps an error propagated unchanged from the host model.
// The engine does not retry model failures.
type GraphModelError struct {
	Err error
}

func (e *GraphModelError) Error() string {
	return "graph model error: " + e.Err.Error()
}

func (e *GraphModelError) Unwrap() error {
	return e.Err
}

// wrapModelErr tags a host-model failure unless it already is one.
func wrapModelErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*GraphModelError); ok {
		return err
	}
	return &GraphModelError{Err: err}
}
