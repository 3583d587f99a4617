/*
tameparse-buildd starts a compile-as-a-service daemon: an HTTP front end
over the same lexer/grammar compilation pipeline the offline build tool
drives, backed by a cache of previously compiled artifacts.

Usage:

	tameparse-buildd [flags]

Once started, the daemon listens for HTTP requests and responds to them
over a small REST surface:

	POST /api/v1/auth/token    exchange an API key ID + secret for a bearer JWT
	POST /api/v1/compile       compile a lexer/grammar pair, auth required

By default it listens on localhost:8080. This can be changed with the
--listen/-l flag or the TAMEPARSE_LISTEN_ADDRESS environment variable.

If a JWT signing secret is not given, one is generated at startup and
seeded from the system CSPRNG. As a consequence, in this mode all tokens
become invalid as soon as the daemon restarts — suitable for local
development, not production.

The flags are:

	-v, --version
		Give the current generator version and exit.

	-l, --listen LISTEN_ADDRESS
		Listen on the given address. Must be in BIND_ADDRESS:PORT or
		:PORT format. Defaults to the value of environment variable
		TAMEPARSE_LISTEN_ADDRESS, and if that is not given, to
		localhost:8080.

	-s, --secret TOKEN_SECRET
		Use the provided secret for signing JWT tokens. Defaults to the
		value of environment variable TAMEPARSE_TOKEN_SECRET; if that
		is empty too, a random secret is generated.

	--data DIR
		Directory holding the API key database and the compiled-artifact
		cache. Defaults to the value of environment variable
		TAMEPARSE_DATA_DIR, and if that is not given, to "./tameparse-data".
*/
package main

import (
	"crypto/rand"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dekarrin/tameparse/internal/service"
	"github.com/dekarrin/tameparse/internal/tameparse/cache"
	"github.com/dekarrin/tameparse/internal/version"
	"github.com/spf13/pflag"
)

const (
	EnvListen = "TAMEPARSE_LISTEN_ADDRESS"
	EnvSecret = "TAMEPARSE_TOKEN_SECRET"
	EnvData   = "TAMEPARSE_DATA_DIR"
)

var (
	flagVersion = pflag.BoolP("version", "v", false, "Give the current generator version and exit.")
	flagListen  = pflag.StringP("listen", "l", "", "Listen on the given address.")
	flagSecret  = pflag.StringP("secret", "s", "", "Use the given secret for JWT signing.")
	flagData    = pflag.String("data", "", "Directory holding the API key database and artifact cache.")
)

func main() {
	pflag.Parse()

	if *flagVersion {
		fmt.Printf("tameparse-buildd (tameparse v%s)\n", version.Current)
		return
	}

	if len(pflag.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "too many arguments\nDo -h for help.\n")
		os.Exit(1)
	}

	addr, err := resolveListenAddr()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\nDo -h for help.\n", err)
		os.Exit(1)
	}

	dataDir := firstNonEmpty(*flagData, os.Getenv(EnvData), "./tameparse-data")
	if err := os.MkdirAll(dataDir, 0o770); err != nil {
		fmt.Fprintf(os.Stderr, "could not create data directory: %s\n", err)
		os.Exit(1)
	}

	secret, err := resolveSecret()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	keys, err := service.OpenKeyStore(filepath.Join(dataDir, "keys.db"))
	if err != nil {
		log.Fatalf("FATAL could not open key store: %s", err)
	}

	artifactCache, err := cache.Open(filepath.Join(dataDir, "cache"))
	if err != nil {
		log.Fatalf("FATAL could not open artifact cache: %s", err)
	}

	srv := &service.Server{
		Keys: keys,
		Compile: &service.CompileService{
			Cache:            artifactCache,
			GeneratorVersion: version.Encoded(),
			GeneratorString:  version.Current,
		},
		ServiceSecret: secret,
	}

	log.Printf("INFO  tameparse-buildd %s listening on %s", version.Current, addr)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatalf("FATAL server exited: %s", err)
	}
}

func resolveListenAddr() (string, error) {
	listenAddr := os.Getenv(EnvListen)
	if pflag.Lookup("listen").Changed {
		listenAddr = *flagListen
	}
	if listenAddr == "" {
		return "localhost:8080", nil
	}

	parts := strings.SplitN(listenAddr, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("listen address %q is not in ADDRESS:PORT or :PORT format", listenAddr)
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return "", fmt.Errorf("%q is not a valid port number", parts[1])
	}
	return listenAddr, nil
}

func resolveSecret() ([]byte, error) {
	secretStr := os.Getenv(EnvSecret)
	if pflag.Lookup("secret").Changed {
		secretStr = *flagSecret
	}
	if secretStr != "" {
		return []byte(secretStr), nil
	}

	secret := make([]byte, 64)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("could not generate token secret: %w", err)
	}
	log.Printf("WARN  using a generated token secret; all tokens issued will become invalid at restart")
	return secret, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
