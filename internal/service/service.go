package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dekarrin/tameparse/internal/tameparse/binout"
	"github.com/dekarrin/tameparse/internal/tameparse/cache"
	"github.com/dekarrin/tameparse/internal/tameparse/outstage"
)

// CompileService wraps outstage.Pipeline with the cache lookup the
// compile-as-a-service daemon performs on every request: a cache hit skips
// recompilation entirely and returns the previously encoded table bytes.
type CompileService struct {
	Cache            *cache.Store
	GeneratorVersion uint32
	GeneratorString  string
	ByteOrder        binary.ByteOrder
}

// CompileRequest is the JSON body POST /api/v1/compile accepts: the parsed
// source AST (SPEC_FULL.md's LexerBlock/ParserBlock stand-in for a parsed
// .fishi file) plus the target language name recorded in the output
// header and factored into the cache key.
type CompileRequest struct {
	Language string               `json:"language"`
	Lexer    outstage.LexerBlock  `json:"lexer"`
	Parser   outstage.ParserBlock `json:"parser"`
}

// CompileResponse is the JSON body returned for a successful compile.
type CompileResponse struct {
	CacheHit      bool   `json:"cache_hit"`
	Table         []byte `json:"table"`
	RuleCount     int    `json:"rule_count"`
	StateCount    int    `json:"state_count"`
	UnresolvedCnt int    `json:"unresolved_conflicts"`
}

// sourceDigest is what this service hashes for the cache key: the Go-syntax
// (%#v) rendering of the decoded request is the simplest stable "source
// text" a request offers, since the real FISHI surface syntax is out of
// scope.
func sourceDigest(req CompileRequest) []byte {
	return []byte(fmt.Sprintf("%#v", req))
}

// Compile runs the pipeline for req, consulting the cache first. A cache
// hit is returned as-is without re-running component G/H; a miss, or a
// corrupt cache entry, runs the full pipeline through a binout.Writer and
// stores the result (overwriting any corrupt entry) before returning it.
func (s *CompileService) Compile(ctx context.Context, req CompileRequest) (CompileResponse, error) {
	key := cache.NewKey(sourceDigest(req), s.GeneratorVersion, req.Language)

	if s.Cache != nil {
		entry, err := s.Cache.Get(key)
		if err == nil {
			return CompileResponse{CacheHit: true, Table: entry.Table}, nil
		}
		var corrupt *cache.ErrCorrupt
		if err != cache.ErrMiss && !errors.As(err, &corrupt) {
			return CompileResponse{}, fmt.Errorf("service: cache lookup: %w", err)
		}
	}

	order := s.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	w := binout.NewWriter(order)

	result, err := outstage.Pipeline(ctx, binout.Meta{
		LanguageName:           req.Language,
		GeneratorVersion:       s.GeneratorVersion,
		GeneratorVersionString: s.GeneratorString,
	}, req.Lexer, req.Parser, w)
	if err != nil {
		return CompileResponse{}, fmt.Errorf("service: compile: %w", err)
	}

	table, err := w.Bytes()
	if err != nil {
		return CompileResponse{}, fmt.Errorf("service: encode: %w", err)
	}

	if s.Cache != nil {
		if err := s.Cache.Put(key, table); err != nil {
			return CompileResponse{}, fmt.Errorf("service: cache store: %w", err)
		}
	}

	return CompileResponse{
		Table:         table,
		RuleCount:     len(result.RuleOrder),
		StateCount:    len(result.Table.States),
		UnresolvedCnt: len(result.Unresolved),
	}, nil
}

// keyTTL is the bearer token lifetime issued at login; short enough that a
// leaked token ages out quickly, long enough that a CI job doesn't need to
// re-authenticate between requests.
const keyTTL = 15 * time.Minute
