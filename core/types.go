package core

import (
	"context"
	"errors"
	"time"

	"github.com/termfx/structq/binding"
	"github.com/termfx/structq/loader"
	"github.com/termfx/structq/matcher"
	"github.com/termfx/structq/pattern"
	"github.com/termfx/structq/providers"
	"github.com/termfx/structq/rewrite"
	"github.com/termfx/structq/tree"
)

// Mode selects what a run produces.
type Mode int

const (
	ModeSearch Mode = iota
	ModeRewrite
)

func (m Mode) String() string {
	if m == ModeRewrite {
		return "rewrite"
	}
	return "search"
}

// Enumerator supplies the ordered candidate file set of a run.
type Enumerator interface {
	Files(ctx context.Context) ([]string, error)
}

// StaticFiles enumerates a fixed list in the given order.
type StaticFiles []string

// Files implements Enumerator.
func (s StaticFiles) Files(context.Context) ([]string, error) { return s, nil }

// Request describes one query run.
type Request struct {
	// Pattern is used when set; otherwise Source is compiled with Grammar.
	Pattern *pattern.Pattern
	Source  string
	Grammar providers.Grammar

	Files  Enumerator
	Reader loader.Source // defaults to loader.OS

	Mode      Mode
	MatchMode matcher.Mode
	Policy    rewrite.Policy

	// TriviaSensitive makes back-references compare comments and spacing.
	TriviaSensitive bool
	StrictLint      bool
}

// Position is a one-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// MatchResult is one successful match.
type MatchResult struct {
	Path     string            `json:"path"`
	Span     tree.Span         `json:"span"`
	Start    Position          `json:"start"`
	End      Position          `json:"end"`
	Kind     string            `json:"kind"`
	Text     string            `json:"text"`
	Bindings map[string]string `json:"bindings,omitempty"`
	Effects  int               `json:"effects,omitempty"`

	Env *binding.Env `json:"-"`
}

// ErrorCode classifies a per-file failure.
type ErrorCode string

const (
	CodeParse    ErrorCode = "ERR_PARSE"
	CodeRead     ErrorCode = "ERR_READ"
	CodeConflict ErrorCode = "ERR_CONFLICT"
	CodeCanceled ErrorCode = "ERR_CANCELED"
)

// FileError is a failure confined to one file.
type FileError struct {
	Path    string    `json:"path"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	Err error `json:"-"`
}

func (e *FileError) Error() string { return e.Path + ": " + string(e.Code) + ": " + e.Message }

func (e *FileError) Unwrap() error { return e.Err }

func fileError(path string, code ErrorCode, err error) *FileError {
	return &FileError{Path: path, Code: code, Message: err.Error(), Err: err}
}

// classify maps loader and context errors to codes.
func classify(path string, err error) *FileError {
	var parseErr *loader.ParseError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fileError(path, CodeCanceled, err)
	case errors.As(err, &parseErr):
		return fileError(path, CodeParse, err)
	default:
		return fileError(path, CodeRead, err)
	}
}

// FileOutput is the rewritten content of one file. The engine never writes
// it to disk.
type FileOutput struct {
	Path    string         `json:"path"`
	Content []byte         `json:"-"`
	Diff    string         `json:"diff,omitempty"`
	Edits   []rewrite.Edit `json:"edits"`
	Changed bool           `json:"changed"`
}

// Stats summarizes a run.
type Stats struct {
	Files          int           `json:"files"`
	SkippedPath    int           `json:"skipped_path"`
	SkippedContent int           `json:"skipped_content"`
	SkippedTree    int           `json:"skipped_tree"`
	Searched       int           `json:"searched"`
	MatchedFiles   int           `json:"matched_files"`
	Matches        int           `json:"matches"`
	Rewritten      int           `json:"rewritten"`
	Failed         int           `json:"failed"`
	Canceled       int           `json:"canceled"`
	Conflicts      int           `json:"conflicts"`
	Loader         loader.Stats  `json:"loader"`
	Duration       time.Duration `json:"duration_ns"`
}

// Report is the outcome of a run. Slices are in file enumeration order and,
// within a file, in match order.
type Report struct {
	RunID     string             `json:"run_id,omitempty"`
	Pattern   string             `json:"pattern"`
	Language  string             `json:"language"`
	Mode      string             `json:"mode"`
	Optimizer string             `json:"optimizer"`
	Warnings  []string           `json:"warnings,omitempty"`
	StartedAt time.Time          `json:"started_at"`
	Matches   []MatchResult      `json:"matches"`
	Outputs   []FileOutput       `json:"outputs,omitempty"`
	Errors    []FileError        `json:"errors,omitempty"`
	Conflicts []rewrite.Conflict `json:"conflicts,omitempty"`
	Files     []FileSummary      `json:"-"`
	Stats     Stats              `json:"stats"`
}

// FileStatus is what happened to one enumerated file.
type FileStatus string

const (
	StatusSkipped   FileStatus = "skipped"
	StatusNoMatch   FileStatus = "no_match"
	StatusMatched   FileStatus = "matched"
	StatusRewritten FileStatus = "rewritten"
	StatusFailed    FileStatus = "failed"
)

// FileSummary is the per-file line of a report, used by journals.
type FileSummary struct {
	Path    string
	Status  FileStatus
	Matches int
	Error   *FileError
	Digest  string
}

// Journal records finished runs. RecordRun returns the stored run id.
type Journal interface {
	RecordRun(ctx context.Context, report *Report) (string, error)
}

// Rule is a named, stored pattern.
type Rule struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Language    string   `json:"language"`
	Pattern     string   `json:"pattern"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ErrRuleNotFound is returned by RuleStore.Rule for an unknown name.
var ErrRuleNotFound = errors.New("rule not found")

// RuleStore persists rules by name.
type RuleStore interface {
	SaveRule(ctx context.Context, r Rule) (Rule, error)
	Rule(ctx context.Context, name string) (Rule, error)
	Rules(ctx context.Context) ([]Rule, error)
}
