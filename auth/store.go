package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultProfileURL      = "https://urs.earthdata.nasa.gov/profile"
	DefaultAuthURL         = "https://urs.earthdata.nasa.gov/oauth/authorize"
	DefaultUserAgent       = "BulkDownloader"
	DefaultValidateTimeout = 10 * time.Second
	DefaultJarFileName     = ".bulk_download_cookiejar.txt"
)

var (
	ErrAuthRejected        = errors.New("credential renewal rejected")
	ErrMalformedCookieFile = errors.New("malformed cookie file")
)

// RenewalError is the one fatal error of a run: the identity provider did
// not accept the supplied username and password.
type RenewalError struct {
	StatusCode int
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("failed to obtain cookie. Status code: %d", e.StatusCode)
}

func (e *RenewalError) Unwrap() error { return ErrAuthRejected }

// StoreOptions configures a Store.
type StoreOptions struct {
	// JarPath is the cookie file. Default: <home>/.bulk_download_cookiejar.txt
	JarPath string

	ProfileURL      string
	AuthURL         string
	UserAgent       string
	ValidateTimeout time.Duration

	Provider CredentialProvider
	Logger   *log.Logger
	Output   io.Writer
}

// DefaultJarPath returns the cookie file location under the user's home
// directory, falling back to the working directory.
func DefaultJarPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultJarFileName
	}
	return filepath.Join(home, DefaultJarFileName)
}

// Store owns the session credential: the cookie jar on disk and in memory.
// The lifecycle is LoadIfPresent, Validate, then Renew if invalid; Ensure
// runs all three.
type Store struct {
	opts       StoreOptions
	jar        *Jar
	httpClient *http.Client
}

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.JarPath == "" {
		opts.JarPath = DefaultJarPath()
	}
	if opts.ProfileURL == "" {
		opts.ProfileURL = DefaultProfileURL
	}
	if opts.AuthURL == "" {
		opts.AuthURL = DefaultAuthURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.ValidateTimeout <= 0 {
		opts.ValidateTimeout = DefaultValidateTimeout
	}
	if opts.Provider == nil {
		opts.Provider = NewTerminalPrompt(os.Stdin, os.Stdout)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[bulkdl] ", log.LstdFlags)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	jar, err := NewJar()
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Store{
		opts:       opts,
		jar:        jar,
		httpClient: &http.Client{Jar: jar},
	}, nil
}

// Jar returns the jar to attach to download requests.
func (s *Store) Jar() *Jar {
	return s.jar
}

// Path returns the cookie file location.
func (s *Store) Path() string {
	return s.opts.JarPath
}

// LoadIfPresent reads the cookie file. A missing file is not an error.
func (s *Store) LoadIfPresent() error {
	f, err := os.Open(s.opts.JarPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open cookie file: %w", err)
	}
	defer f.Close()

	return s.jar.Load(f)
}

// Validate reports whether the loaded credential is accepted by the profile
// endpoint. Transport failures count as invalid.
func (s *Store) Validate(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ValidateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.ProfileURL, nil)
	if err != nil {
		s.opts.Logger.Printf("cookie validation error: %v", err)
		return false
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.opts.Logger.Printf("cookie validation error: %v", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// Renew asks the provider for a username and password, authenticates
// against the authorization endpoint with HTTP basic auth and, on 200,
// overwrites the cookie file with every cookie held. Any other status
// returns a *RenewalError.
func (s *Store) Renew(ctx context.Context) error {
	username, password, err := s.opts.Provider.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.AuthURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(username, password)
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &RenewalError{StatusCode: resp.StatusCode}
	}

	if err := s.save(); err != nil {
		return fmt.Errorf("save cookie file: %w", err)
	}
	fmt.Fprintln(s.opts.Output, "Cookie obtained and saved.")

	return nil
}

// Ensure guarantees a valid credential before any download starts.
func (s *Store) Ensure(ctx context.Context) error {
	if err := s.LoadIfPresent(); err != nil {
		s.opts.Logger.Printf("ignoring unreadable cookie file %s: %v", s.opts.JarPath, err)
	}

	if s.Validate(ctx) {
		fmt.Fprintln(s.opts.Output, "Cookie validated successfully.")
		return nil
	}

	fmt.Fprintln(s.opts.Output, "Obtaining new cookie...")
	return s.Renew(ctx)
}

// save replaces the cookie file atomically.
func (s *Store) save() error {
	dir := filepath.Dir(s.opts.JarPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.opts.JarPath)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := s.jar.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.opts.JarPath)
}
