// Package auth manages the session cookie that authenticates downloads
// against an Earthdata Login style identity provider.
//
// The cookie set lives in a Netscape cookie file (by default
// ~/.bulk_download_cookiejar.txt). A Store loads it, probes the profile
// endpoint to check it is still accepted and, when it is not, asks a
// CredentialProvider for a username and password, logs in with HTTP basic
// auth and writes the fresh cookies back to disk.
//
//	store, err := auth.NewStore(auth.StoreOptions{})
//	if err := store.Ensure(ctx); err != nil {
//	    // *auth.RenewalError: the identity provider rejected the login
//	}
//	client := &http.Client{Jar: store.Jar()}
package auth
