package pattern

import "fmt"

// ErrorCode is a stable identifier for a compile failure.
type ErrorCode string

const (
	ECSyntax                ErrorCode = "ERR_SYNTAX"
	ECUndefinedVariable     ErrorCode = "ERR_UNDEFINED_VARIABLE"
	ECConflictingConstraint ErrorCode = "ERR_CONFLICTING_CONSTRAINT"
	ECPredicateArity        ErrorCode = "ERR_PREDICATE_ARITY"
	ECPredicateArgument     ErrorCode = "ERR_PREDICATE_ARGUMENT"
	ECSnippet               ErrorCode = "ERR_SNIPPET"
	ECRestPlacement         ErrorCode = "ERR_REST_PLACEMENT"
	ECRewritePlacement      ErrorCode = "ERR_REWRITE_PLACEMENT"
	ECUnreachable           ErrorCode = "ERR_UNREACHABLE"
)

// Position locates a construct in the pattern source.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Col    int `json:"col"`
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// CompileError reports a malformed pattern. It is fatal to the whole query.
type CompileError struct {
	Code ErrorCode `json:"code"`
	Pos  Position  `json:"pos"`
	Msg  string    `json:"message"`
	Err  error     `json:"-"`
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Pos, e.Msg)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Warning is a non-fatal lint finding.
type Warning struct {
	Code ErrorCode `json:"code"`
	Pos  Position  `json:"pos"`
	Msg  string    `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at %s: %s", w.Code, w.Pos, w.Msg)
}

func errorf(code ErrorCode, pos Position, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
