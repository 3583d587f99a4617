package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Server bundles everything the HTTP router needs: the key store for
// auth, the compile service, and the signing secret. It's the
// compile-as-a-service analogue of server.go's TunaQuestServer.
type Server struct {
	Keys          *KeyStore
	Compile       *CompileService
	ServiceSecret []byte
}

// Router builds the chi.Mux exposing this service's endpoints, grounded on
// endpoints.go's route table and api.PathPrefix convention.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(WithTraceID, RecoverPanic, logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/token", s.handleIssueToken)

		r.Group(func(r chi.Router) {
			r.Use(RequireBearer(s.lookupKey, s.ServiceSecret))
			r.Post("/compile", s.handleCompile)
		})
	})

	return r
}

func (s *Server) lookupKey(ctx context.Context, id uuid.UUID) (APIKey, error) {
	return s.Keys.GetByID(ctx, id)
}

type tokenRequest struct {
	KeyID  string `json:"key_id"`
	Secret string `json:"secret"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// handleIssueToken exchanges an API key ID + secret for a bearer JWT,
// grounded on server.go's handlePathLogin/Login: parse JSON body,
// authenticate, mint a token, return HTTP-201.
func (s *Server) handleIssueToken(w http.ResponseWriter, req *http.Request) {
	var body tokenRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, req, http.StatusBadRequest, "malformed JSON body")
		return
	}

	id, err := uuid.Parse(body.KeyID)
	if err != nil {
		writeError(w, req, http.StatusUnauthorized, "incorrect key id or secret")
		return
	}

	key, err := s.Keys.Authenticate(req.Context(), id, body.Secret)
	if err != nil {
		writeError(w, req, http.StatusUnauthorized, "incorrect key id or secret")
		return
	}

	expiry := time.Now().Add(keyTTL)
	tok, err := IssueToken(key, s.ServiceSecret, keyTTL)
	if err != nil {
		writeError(w, req, http.StatusInternalServerError, "could not issue token")
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{Token: tok, ExpiresAt: expiry.Unix()})
}

// handleCompile runs a compile request through the cache-aware pipeline
// and returns the encoded table, grounded on api.go's httpEndpoint shape
// (decode, call backend, render JSON) without that package's fuller
// result.Result machinery, which this smaller surface doesn't need.
func (s *Server) handleCompile(w http.ResponseWriter, req *http.Request) {
	var body CompileRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, req, http.StatusBadRequest, "malformed JSON body")
		return
	}

	resp, err := s.Compile.Compile(req.Context(), body)
	if err != nil {
		writeError(w, req, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		writeError(w, nil, http.StatusInternalServerError, fmt.Sprintf("could not marshal response: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
}
