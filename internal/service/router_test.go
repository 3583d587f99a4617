package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/dekarrin/tameparse/internal/tameparse/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ks, err := OpenKeyStore(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	return &Server{
		Keys:          ks,
		Compile:       &CompileService{Cache: c, GeneratorVersion: 1, GeneratorString: "test"},
		ServiceSecret: []byte("test-secret"),
	}
}

func Test_Router_IssueToken_ThenCompile_EndToEnd(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	s := newTestServer(t)
	id, err := s.Keys.Issue(context.Background(), "ci", "sesame")
	require.NoError(err)

	router := s.Router()

	tokenBody, _ := json.Marshal(tokenRequest{KeyID: id.String(), Secret: "sesame"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(tokenBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(http.StatusCreated, rec.Code)

	var tokResp tokenResponse
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &tokResp))
	assert.NotEmpty(tokResp.Token)

	compileBody, _ := json.Marshal(CompileRequest{
		Language: "go",
		Lexer:    exprLexerBlock(),
		Parser:   exprParserBlock(),
	})
	compileReq := httptest.NewRequest(http.MethodPost, "/api/v1/compile", bytes.NewReader(compileBody))
	compileReq.Header.Set("Authorization", "Bearer "+tokResp.Token)
	compileRec := httptest.NewRecorder()
	router.ServeHTTP(compileRec, compileReq)

	assert.Equal(http.StatusOK, compileRec.Code)
	var compileResp CompileResponse
	require.NoError(json.Unmarshal(compileRec.Body.Bytes(), &compileResp))
	assert.NotEmpty(compileResp.Table)
}

func Test_Router_Compile_RejectsMissingBearerToken(t *testing.T) {
	assert := assert.New(t)
	s := newTestServer(t)
	router := s.Router()

	body, _ := json.Marshal(CompileRequest{Language: "go", Lexer: exprLexerBlock(), Parser: exprParserBlock()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/compile", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(http.StatusUnauthorized, rec.Code)
}

func Test_Router_IssueToken_RejectsWrongSecret(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	s := newTestServer(t)
	id, err := s.Keys.Issue(context.Background(), "ci", "sesame")
	require.NoError(err)

	router := s.Router()
	body, _ := json.Marshal(tokenRequest{KeyID: id.String(), Secret: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(http.StatusUnauthorized, rec.Code)
}
