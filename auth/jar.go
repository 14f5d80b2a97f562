package auth

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	netscapeHeader = "# Netscape HTTP Cookie File"
	httpOnlyPrefix = "#HttpOnly_"
)

// entry is one line of a Netscape cookie file.
type entry struct {
	domain            string
	includeSubdomains bool
	path              string
	secure            bool
	httpOnly          bool
	expires           int64 // unix seconds, 0 for a session cookie
	name              string
	value             string
}

func (e entry) key() string {
	return e.domain + "\t" + e.path + "\t" + e.name
}

// Jar is an http.CookieJar that remembers every cookie it accepts so the
// whole set can be written back in the Netscape cookie-file layout.
// Matching cookies to requests is delegated to net/http/cookiejar.
type Jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	entries map[string]entry
	now     func() time.Time
}

func NewJar() (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	return &Jar{
		inner:   inner,
		entries: make(map[string]entry),
		now:     time.Now,
	}, nil
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		e := j.entryFor(u, c)
		if c.MaxAge < 0 || (e.expires != 0 && e.expires <= j.now().Unix()) {
			delete(j.entries, e.key())
			continue
		}
		if !j.holds(e) {
			continue
		}
		j.entries[e.key()] = e
	}
}

// holds reports whether the inner jar accepted e, which it does not for a
// Domain attribute that fails to match the request host or names a public
// suffix.
func (j *Jar) holds(e entry) bool {
	scheme := "http"
	if e.secure {
		scheme = "https"
	}
	host := strings.TrimPrefix(e.domain, ".")
	for _, c := range j.inner.Cookies(&url.URL{Scheme: scheme, Host: host, Path: e.path}) {
		if c.Name == e.name && c.Value == e.value {
			return true
		}
	}
	return false
}

func (j *Jar) entryFor(u *url.URL, c *http.Cookie) entry {
	e := entry{
		domain:   strings.ToLower(u.Hostname()),
		path:     c.Path,
		secure:   c.Secure,
		httpOnly: c.HttpOnly,
		name:     c.Name,
		value:    c.Value,
	}

	if c.Domain != "" {
		e.domain = "." + strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		e.includeSubdomains = true
	}
	if e.path == "" || e.path[0] != '/' {
		e.path = defaultPath(u.Path)
	}

	switch {
	case c.MaxAge > 0:
		e.expires = j.now().Add(time.Duration(c.MaxAge) * time.Second).Unix()
	case !c.Expires.IsZero():
		e.expires = c.Expires.Unix()
	}

	return e
}

// defaultPath is the directory of the request path, per RFC 6265 section 5.1.4.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	dir := path.Dir(p)
	if dir == "." {
		return "/"
	}
	return dir
}

// Len returns the number of cookies held.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	return len(j.entries)
}

// Load adds the cookies in a Netscape cookie file. Comment lines are skipped
// and expired cookies are dropped. An empty expiry field marks a session
// cookie. Nothing is added unless the whole file parses.
func (j *Jar) Load(r io.Reader) error {
	var loaded []entry

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), "\r\n")

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		e, err := parseEntry(line)
		if err != nil {
			return fmt.Errorf("cookie file line %d: %w", lineNo, err)
		}
		e.httpOnly = httpOnly

		if e.expires != 0 && e.expires <= j.now().Unix() {
			continue
		}
		loaded = append(loaded, e)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read cookie file: %w", err)
	}

	for _, e := range loaded {
		j.add(e)
	}

	return nil
}

func parseEntry(line string) (entry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) == 6 {
		// cookie with an empty value
		fields = append(fields, "")
	}
	if len(fields) != 7 {
		return entry{}, fmt.Errorf("%w: expected 7 tab-separated fields, got %d", ErrMalformedCookieFile, len(fields))
	}

	var expires int64
	if raw := strings.TrimSpace(fields[4]); raw != "" {
		var err error
		expires, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return entry{}, fmt.Errorf("%w: expiry %q: %w", ErrMalformedCookieFile, fields[4], err)
		}
	}

	return entry{
		domain:            strings.ToLower(fields[0]),
		includeSubdomains: strings.EqualFold(fields[1], "TRUE"),
		path:              fields[2],
		secure:            strings.EqualFold(fields[3], "TRUE"),
		expires:           expires,
		name:              fields[5],
		value:             fields[6],
	}, nil
}

// add installs e as though the server for its domain had set it.
func (j *Jar) add(e entry) {
	host := strings.TrimPrefix(e.domain, ".")
	scheme := "http"
	if e.secure {
		scheme = "https"
	}

	c := &http.Cookie{
		Name:     e.name,
		Value:    e.value,
		Path:     e.path,
		Secure:   e.secure,
		HttpOnly: e.httpOnly,
	}
	if e.includeSubdomains {
		c.Domain = host
	}
	if e.expires != 0 {
		c.Expires = time.Unix(e.expires, 0)
	}

	j.inner.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: e.path}, []*http.Cookie{c})

	j.mu.Lock()
	j.entries[e.key()] = e
	j.mu.Unlock()
}

// Save writes every cookie held, session cookies included, in the Netscape
// layout. Output is sorted so repeated saves of the same jar are identical.
func (j *Jar) Save(w io.Writer) error {
	j.mu.Lock()
	entries := make([]entry, 0, len(j.entries))
	for _, e := range j.entries {
		entries = append(entries, e)
	}
	j.mu.Unlock()

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].key() < entries[b].key()
	})

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, netscapeHeader)
	fmt.Fprintln(bw, "# This file was generated by bulkdl. Edit at your own risk.")
	fmt.Fprintln(bw)

	for _, e := range entries {
		domain := e.domain
		if e.httpOnly {
			domain = httpOnlyPrefix + domain
		}
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, boolField(e.includeSubdomains), e.path, boolField(e.secure), e.expires, e.name, e.value)
	}

	return bw.Flush()
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
