// Package diag implements the diagnostic sink contract (spec §6.5) and the
// error taxonomy of spec §7: source-shape errors, semantic warnings,
// conflict errors, resource errors, and internal (`Bug`) errors, all routed
// through one sink rather than raised as unwinding failures across
// component boundaries (spec §7's propagation policy).
//
// Grounded on the teacher's internal/tqerrors package, whose
// interpreterError pairs a technical message with a human-readable one;
// Record plays the same role (a technical Message plus an optional wrapped
// cause), generalized from a single error kind to the six-severity,
// coded taxonomy spec §6.5/§7 specify. Message wrapping for terminal
// display uses rosed.Edit(...).Wrap(...), the same call engine.go makes
// on every console message before printing it.
package diag

import (
	"fmt"
	"sort"

	"github.com/dekarrin/rosed"
)

// Severity is one of spec §6.5's six diagnostic severities, ordered from
// least to most severe so Max and the CLI exit-code mapping (spec §6.7) can
// compare them directly.
type Severity int

const (
	Info Severity = iota
	Detail
	Warning
	Error
	Fatal
	Bug
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "Info"
	case Detail:
		return "Detail"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	case Fatal:
		return "Fatal"
	case Bug:
		return "Bug"
	default:
		return "Unknown"
	}
}

// ExitCode maps a severity to the process exit code spec §6.7 specifies:
// "0 none, 3 warning, 4 error, 5 fatal, 6 bug".
func (s Severity) ExitCode() int {
	switch s {
	case Warning:
		return 3
	case Error:
		return 4
	case Fatal:
		return 5
	case Bug:
		return 6
	default:
		return 0
	}
}

// Code is a stable diagnostic code, e.g. "ShiftReduceConflict" or
// "GuardTiePriority". Spec §7 names kinds, not a fixed code enum, so codes
// here are a conventional superset: the taxonomy's named kinds plus the two
// SPEC_FULL.md expansion codes (GuardTiePriority, CacheCorrupt).
type Code string

const (
	CodeDuplicateLexerSymbol Code = "DuplicateLexerSymbol"
	CodeUnknownNonTerminal   Code = "UnknownNonTerminal"
	CodeMalformedEBNF        Code = "MalformedEBNF"
	CodeImportCycle          Code = "ImportCycle"

	CodeUnusedSymbol       Code = "UnusedSymbol"
	CodeImplicitKeyword    Code = "ImplicitKeyword"
	CodeGuardCanClash      Code = "GuardCanClash"
	CodeGuardTiePriority   Code = "GuardTiePriority"

	CodeShiftReduceConflict  Code = "ShiftReduceConflict"
	CodeReduceReduceConflict Code = "ReduceReduceConflict"

	CodeTooManyLexerStates Code = "TooManyLexerStates"
	CodeTooManyPartitions  Code = "TooManyPartitions"
	CodeIOFailure          Code = "IOFailure"
	CodeCacheCorrupt       Code = "CacheCorrupt"

	CodeInternalBug Code = "InternalBug"
)

// Position is a source location a Record can be anchored to. All fields
// are optional (a Record with no File is still valid — e.g. a whole-run
// resource error has no single source position).
type Position struct {
	File string
	Line int
	Col  int
}

func (p Position) String() string {
	if p.File == "" {
		return ""
	}
	if p.Line == 0 {
		return p.File
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Record is one `(severity, code, file, position, message)` diagnostic
// (spec §6.5), with an optional wrapped cause for programmatic inspection.
type Record struct {
	Severity Severity
	Code     Code
	Pos      Position
	Message  string
	Cause    error
}

func (r Record) Error() string {
	if r.Pos.String() == "" {
		return fmt.Sprintf("%s[%s]: %s", r.Severity, r.Code, r.Message)
	}
	return fmt.Sprintf("%s[%s] %s: %s", r.Severity, r.Code, r.Pos, r.Message)
}

func (r Record) Unwrap() error { return r.Cause }

// Wrapped returns the record's message word-wrapped to width columns, via
// rosed.Edit — the same terminal-formatting call engine.go makes on every
// console message. The width is always the caller's; there is no default.
func (r Record) Wrapped(width int) string {
	return rosed.Edit(r.Error()).Wrap(width).String()
}

// Sink collects Records and tracks whether compilation may continue (spec
// §6.5: "returns whether compilation may continue") and the CLI's highest
// severity seen so far (spec §6.7's exit-code rule). The pipeline aborts
// only on Fatal or Bug (spec §7's propagation policy); Sink itself doesn't
// enforce that — callers check CanContinue after every phase and decide.
type Sink struct {
	records []Record
	max     Severity
	// permitConflicts and allowReduceConflicts mirror the CLI flags of
	// the same name (spec §6.7): when set, Report demotes conflict-kind
	// records to Warning before recording them.
	permitConflicts      bool
	allowReduceConflicts bool
}

// NewSink returns an empty sink. permitConflicts demotes both conflict
// kinds to Warning (--permit-conflicts); allowReduceConflicts demotes only
// reduce/reduce conflicts (--allow-reduce-conflicts, spec §7).
func NewSink(permitConflicts, allowReduceConflicts bool) *Sink {
	return &Sink{permitConflicts: permitConflicts, allowReduceConflicts: allowReduceConflicts}
}

// Report files one diagnostic, applying the conflict-demotion policy first.
func (s *Sink) Report(r Record) {
	switch r.Code {
	case CodeShiftReduceConflict:
		if s.permitConflicts {
			r.Severity = Warning
		}
	case CodeReduceReduceConflict:
		if s.permitConflicts || s.allowReduceConflicts {
			r.Severity = Warning
		}
	}
	s.records = append(s.records, r)
	if r.Severity > s.max {
		s.max = r.Severity
	}
}

// Reportf is a convenience wrapper building a Record from a format string.
func (s *Sink) Reportf(sev Severity, code Code, pos Position, format string, args ...interface{}) {
	s.Report(Record{Severity: sev, Code: code, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Bug reports an internal-invariant-violation diagnostic; always Bug
// severity, per spec §7: "Internal errors (Bug): ... Always fatal."
func (s *Sink) Bug(format string, args ...interface{}) {
	s.Report(Record{Severity: Bug, Code: CodeInternalBug, Message: fmt.Sprintf(format, args...)})
}

// Records returns every diagnostic filed so far, in report order.
func (s *Sink) Records() []Record { return append([]Record{}, s.records...) }

// MaxSeverity is the highest severity seen so far.
func (s *Sink) MaxSeverity() Severity { return s.max }

// CanContinue reports whether compilation may proceed to the next phase:
// false once a Fatal or Bug record has been filed (spec §7: "the pipeline
// aborts only on Fatal or Bug").
func (s *Sink) CanContinue() bool { return s.max < Fatal }

// ExitCode is the process exit code spec §6.7 assigns the highest severity
// reported so far.
func (s *Sink) ExitCode() int { return s.max.ExitCode() }

// BySeverity groups the filed records by severity, each group sorted by
// Code then by position string, for stable --show-error-codes style
// reporting.
func (s *Sink) BySeverity() map[Severity][]Record {
	out := map[Severity][]Record{}
	for _, r := range s.records {
		out[r.Severity] = append(out[r.Severity], r)
	}
	for sev := range out {
		group := out[sev]
		sort.Slice(group, func(i, j int) bool {
			if group[i].Code != group[j].Code {
				return group[i].Code < group[j].Code
			}
			return group[i].Pos.String() < group[j].Pos.String()
		})
		out[sev] = group
	}
	return out
}
