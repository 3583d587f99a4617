package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Sink_TracksMaxSeverityAndExitCode(t *testing.T) {
	assert := assert.New(t)
	s := NewSink(false, false)
	assert.Equal(0, s.ExitCode())
	assert.True(s.CanContinue())

	s.Reportf(Warning, CodeUnusedSymbol, Position{File: "g.fishi", Line: 3, Col: 1}, "terminal %q is never used", "FOO")
	assert.Equal(3, s.ExitCode())
	assert.True(s.CanContinue())

	s.Reportf(Error, CodeUnknownNonTerminal, Position{}, "no such nonterminal %q", "bar")
	assert.Equal(4, s.ExitCode())
	assert.True(s.CanContinue())

	s.Reportf(Fatal, CodeTooManyLexerStates, Position{}, "lexer exceeded 65534 states")
	assert.Equal(5, s.ExitCode())
	assert.False(s.CanContinue(), "Fatal must stop the pipeline")
}

func Test_Sink_Bug_IsAlwaysBugSeverity(t *testing.T) {
	assert := assert.New(t)
	s := NewSink(false, false)
	s.Bug("unknown item kind %d", 99)
	assert.Equal(Bug, s.MaxSeverity())
	assert.Equal(6, s.ExitCode())
}

func Test_Sink_PermitConflicts_DemotesBothConflictKinds(t *testing.T) {
	assert := assert.New(t)
	s := NewSink(true, false)
	s.Report(Record{Severity: Error, Code: CodeShiftReduceConflict, Message: "state 4 on \"+\""})
	s.Report(Record{Severity: Error, Code: CodeReduceReduceConflict, Message: "state 7 on \"$\""})

	for _, r := range s.Records() {
		assert.Equal(Warning, r.Severity)
	}
}

func Test_Sink_AllowReduceConflicts_DemotesOnlyReduceReduce(t *testing.T) {
	assert := assert.New(t)
	s := NewSink(false, true)
	s.Report(Record{Severity: Error, Code: CodeShiftReduceConflict, Message: "shift/reduce"})
	s.Report(Record{Severity: Error, Code: CodeReduceReduceConflict, Message: "reduce/reduce"})

	records := s.Records()
	assert.Equal(Error, records[0].Severity)
	assert.Equal(Warning, records[1].Severity)
}

func Test_Record_Wrapped_ProducesNonEmptyWrappedMessage(t *testing.T) {
	assert := assert.New(t)
	r := Record{
		Severity: Warning,
		Code:     CodeUnusedSymbol,
		Pos:      Position{File: "g.fishi", Line: 10, Col: 2},
		Message:  "terminal declared but never referenced by any production in the grammar",
	}
	wrapped := r.Wrapped(40)
	assert.NotEmpty(wrapped)
	assert.Contains(wrapped, "Warning")
}

func Test_Sink_BySeverity_GroupsAndSortsByCode(t *testing.T) {
	assert := assert.New(t)
	s := NewSink(false, false)
	s.Reportf(Warning, CodeUnusedSymbol, Position{}, "a")
	s.Reportf(Warning, CodeGuardCanClash, Position{}, "b")

	grouped := s.BySeverity()[Warning]
	assert.Len(grouped, 2)
	assert.Equal(CodeGuardCanClash, grouped[0].Code)
}
