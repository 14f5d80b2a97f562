package auth_test

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkatanacio/bulkdl/auth"
)

const (
	testUser     = "scientist"
	testPassword = "s3cret"
	sessionValue = "session-abc"
)

// identityProvider mimics the profile and authorize endpoints. The profile
// endpoint only accepts requests carrying the session cookie handed out by
// a successful basic-auth login.
type identityProvider struct {
	*httptest.Server

	profileHits   atomic.Int32
	authorizeHits atomic.Int32
	lastUserAgent atomic.Value
}

func newIdentityProvider(t *testing.T) *identityProvider {
	t.Helper()

	idp := &identityProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		idp.profileHits.Add(1)
		idp.lastUserAgent.Store(r.Header.Get("User-Agent"))

		c, err := r.Cookie("urs_session")
		if err != nil || c.Value != sessionValue {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"uid":"scientist"}`))
	})
	mux.HandleFunc("/oauth/authorize", func(w http.ResponseWriter, r *http.Request) {
		idp.authorizeHits.Add(1)

		user, pass, ok := r.BasicAuth()
		if !ok || user != testUser || pass != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "urs_session", Value: sessionValue, Path: "/", HttpOnly: true})
		w.Write([]byte("ok"))
	})

	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Close)

	return idp
}

// countingProvider records how many times it was asked for credentials.
type countingProvider struct {
	auth.StaticCredentials
	calls int
}

func (p *countingProvider) Credentials(ctx context.Context) (string, string, error) {
	p.calls++
	return p.StaticCredentials.Credentials(ctx)
}

func newTestStore(t *testing.T, idp *identityProvider, jarPath string, provider auth.CredentialProvider) *auth.Store {
	t.Helper()

	store, err := auth.NewStore(auth.StoreOptions{
		JarPath:    jarPath,
		ProfileURL: idp.URL + "/profile",
		AuthURL:    idp.URL + "/oauth/authorize",
		Provider:   provider,
		Logger:     log.New(io.Discard, "", 0),
		Output:     io.Discard,
	})
	require.NoError(t, err)
	return store
}

func Test_Store_Ensure_RenewsThenReusesSavedCookie(t *testing.T) {
	idp := newIdentityProvider(t)
	jarPath := filepath.Join(t.TempDir(), ".bulk_download_cookiejar.txt")

	provider := &countingProvider{StaticCredentials: auth.StaticCredentials{Username: testUser, Password: testPassword}}
	first := newTestStore(t, idp, jarPath, provider)

	require.NoError(t, first.Ensure(context.Background()))
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, int32(1), idp.authorizeHits.Load())
	assert.Equal(t, auth.DefaultUserAgent, idp.lastUserAgent.Load())

	content, err := os.ReadFile(jarPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Netscape HTTP Cookie File")
	assert.Contains(t, string(content), "urs_session\t"+sessionValue)

	// a second run loads the saved cookie and never prompts
	second := newTestStore(t, idp, jarPath, provider)
	require.NoError(t, second.Ensure(context.Background()))
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, int32(1), idp.authorizeHits.Load())
	assert.True(t, second.Validate(context.Background()))
}

func Test_Store_Ensure_ValidCookieSkipsPrompt(t *testing.T) {
	idp := newIdentityProvider(t)
	jarPath := filepath.Join(t.TempDir(), "jar.txt")

	host, _, err := net.SplitHostPort(idp.Listener.Addr().String())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(jarPath, []byte("# Netscape HTTP Cookie File\n"+
		host+"\tFALSE\t/\tFALSE\t0\turs_session\t"+sessionValue+"\n"), 0o600))

	provider := &countingProvider{}
	store := newTestStore(t, idp, jarPath, provider)

	require.NoError(t, store.Ensure(context.Background()))
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, int32(0), idp.authorizeHits.Load())
}

func Test_Store_Renew_Rejected(t *testing.T) {
	idp := newIdentityProvider(t)
	jarPath := filepath.Join(t.TempDir(), "jar.txt")

	store := newTestStore(t, idp, jarPath, auth.StaticCredentials{Username: testUser, Password: "wrong"})

	err := store.Ensure(context.Background())

	var renewalErr *auth.RenewalError
	require.ErrorAs(t, err, &renewalErr)
	assert.Equal(t, http.StatusUnauthorized, renewalErr.StatusCode)
	assert.ErrorIs(t, err, auth.ErrAuthRejected)
	assert.Contains(t, err.Error(), "401")

	_, statErr := os.Stat(jarPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func Test_Store_Renew_OverwritesExistingFile(t *testing.T) {
	idp := newIdentityProvider(t)
	jarPath := filepath.Join(t.TempDir(), "jar.txt")
	require.NoError(t, os.WriteFile(jarPath, []byte("# Netscape HTTP Cookie File\nexample.org\tFALSE\t/\tFALSE\t0\tstale\tx\n"), 0o600))

	store := newTestStore(t, idp, jarPath, auth.StaticCredentials{Username: testUser, Password: testPassword})
	require.NoError(t, store.LoadIfPresent())
	require.NoError(t, store.Renew(context.Background()))

	content, err := os.ReadFile(jarPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "urs_session")
	// loaded cookies are part of the credential set and are kept
	assert.Contains(t, string(content), "stale")

	info, err := os.Stat(jarPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func Test_Store_Validate_TransportErrorIsInvalid(t *testing.T) {
	idp := newIdentityProvider(t)
	store := newTestStore(t, idp, filepath.Join(t.TempDir(), "jar.txt"), auth.StaticCredentials{})

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	store2, err := auth.NewStore(auth.StoreOptions{
		JarPath:    filepath.Join(t.TempDir(), "jar.txt"),
		ProfileURL: deadURL + "/profile",
		Logger:     log.New(io.Discard, "", 0),
		Output:     io.Discard,
	})
	require.NoError(t, err)

	assert.False(t, store2.Validate(context.Background()))
	assert.False(t, store.Validate(context.Background()))
}

func Test_Store_LoadIfPresent(t *testing.T) {
	idp := newIdentityProvider(t)
	dir := t.TempDir()

	missing := newTestStore(t, idp, filepath.Join(dir, "missing.txt"), nil)
	assert.NoError(t, missing.LoadIfPresent())
	assert.Equal(t, 0, missing.Jar().Len())

	emptyPath := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))
	empty := newTestStore(t, idp, emptyPath, nil)
	assert.NoError(t, empty.LoadIfPresent())

	badPath := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(badPath, []byte("garbage line\n"), 0o600))
	bad := newTestStore(t, idp, badPath, auth.StaticCredentials{Username: testUser, Password: testPassword})
	assert.ErrorIs(t, bad.LoadIfPresent(), auth.ErrMalformedCookieFile)

	// an unreadable file does not stop Ensure, it renews instead
	assert.NoError(t, bad.Ensure(context.Background()))
}

func Test_NewStore_Defaults(t *testing.T) {
	store, err := auth.NewStore(auth.StoreOptions{Provider: auth.StaticCredentials{}})
	require.NoError(t, err)

	assert.Equal(t, auth.DefaultJarPath(), store.Path())
	assert.Equal(t, auth.DefaultJarFileName, filepath.Base(store.Path()))
}
