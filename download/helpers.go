package download

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
)

// hashBlockSize is the read size used while hashing local files.
const hashBlockSize = 4096

// NewTarget validates rawURL and returns an immutable Target. expectedMD5 may
// be empty to skip checksum verification.
func NewTarget(rawURL, expectedMD5 string) (Target, error) {
	if _, err := LocalName(rawURL); err != nil {
		return Target{}, err
	}

	return Target{
		url:         rawURL,
		expectedMD5: strings.ToLower(strings.TrimSpace(expectedMD5)),
	}, nil
}

// LocalName derives the local file name from the final segment of the URL path.
func LocalName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %s: unsupported scheme %q", ErrInvalidURL, rawURL, u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" || strings.HasSuffix(u.Path, "/") {
		return "", fmt.Errorf("%w: %s", ErrNoFileName, rawURL)
	}

	return name, nil
}

// GetMD5Hash streams the file through MD5 in fixed-size blocks and returns
// the hex encoding. Memory use does not depend on the file size.
func GetMD5Hash(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, hashBlockSize)); err != nil {
		return "", fmt.Errorf("hash %s: %w", filePath, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyMD5 is a no-op when expected is empty. Otherwise it returns an
// *IntegrityError when the file does not hash to expected.
func VerifyMD5(filePath, expected string) error {
	if expected == "" {
		return nil
	}

	actual, err := GetMD5Hash(filePath)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actual, expected) {
		return &IntegrityError{Path: filePath, Expected: expected, Actual: actual}
	}

	return nil
}

// Percent returns done as a percentage of total, or 0 when total is not positive.
func Percent(done, total int64) float64 {
	if total <= 0 {
		return 0
	}

	return float64(done) / float64(total) * 100
}

// fileSize returns the size of the file at filePath and whether it exists.
func fileSize(filePath string) (int64, bool, error) {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return info.Size(), true, nil
}
