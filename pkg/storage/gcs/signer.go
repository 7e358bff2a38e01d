package gcs

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signingAlgorithm = "GOOG4-RSA-SHA256"
	storageHost      = "storage.googleapis.com"
	unsignedPayload  = "UNSIGNED-PAYLOAD"
)

// SignedURLOptions shape a single V4 signed URL.
type SignedURLOptions struct {
	Method  string
	Expires time.Duration
	// ResponseDisposition is passed as response-content-disposition so the
	// browser saves the object under the customer-facing filename.
	ResponseDisposition string
	Now                 time.Time
}

// SignedDownloadURL returns a time-limited V4 signed URL for the object in the
// default bucket. Requires service-account credentials; the metadata token
// source has no local key to sign with.
func (c *Client) SignedDownloadURL(object string, opts SignedURLOptions) (string, error) {
	if c == nil {
		return "", errors.New("gcs client not initialized")
	}
	return c.signedURL(c.defaultBucket, object, opts)
}

func (c *Client) signedURL(bucket, object string, opts SignedURLOptions) (string, error) {
	if c.signerKey == nil || c.signerEmail == "" {
		return "", errors.New("url signing requires service account credentials")
	}
	if bucket == "" {
		return "", errors.New("bucket is required")
	}
	if object == "" {
		return "", errors.New("object is required")
	}

	method := opts.Method
	if method == "" {
		method = "GET"
	}
	expires := opts.Expires
	if expires <= 0 {
		expires = time.Hour
	}
	if expires > 7*24*time.Hour {
		return "", fmt.Errorf("expiry %s exceeds the 7 day signing maximum", expires)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	timestamp := now.Format("20060102T150405Z")
	datestamp := now.Format("20060102")
	credentialScope := fmt.Sprintf("%s/auto/storage/goog4_request", datestamp)
	credential := fmt.Sprintf("%s/%s", c.signerEmail, credentialScope)

	canonicalPath := "/" + bucket + "/" + escapeObjectPath(object)

	query := url.Values{}
	query.Set("X-Goog-Algorithm", signingAlgorithm)
	query.Set("X-Goog-Credential", credential)
	query.Set("X-Goog-Date", timestamp)
	query.Set("X-Goog-Expires", fmt.Sprintf("%d", int64(expires.Seconds())))
	query.Set("X-Goog-SignedHeaders", "host")
	if opts.ResponseDisposition != "" {
		query.Set("response-content-disposition", opts.ResponseDisposition)
	}

	canonicalQuery := canonicalQueryString(query)
	canonicalHeaders := "host:" + storageHost + "\n"

	canonicalRequest := strings.Join([]string{
		method,
		canonicalPath,
		canonicalQuery,
		canonicalHeaders,
		"host",
		unsignedPayload,
	}, "\n")

	requestHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		timestamp,
		credentialScope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	signHash := sha256.Sum256([]byte(stringToSign))
	signature, err := rsa.SignPKCS1v15(rand.Reader, c.signerKey, crypto.SHA256, signHash[:])
	if err != nil {
		return "", fmt.Errorf("signing url: %w", err)
	}

	return fmt.Sprintf("https://%s%s?%s&X-Goog-Signature=%s",
		storageHost, canonicalPath, canonicalQuery, hex.EncodeToString(signature)), nil
}

// escapeObjectPath percent-encodes each path segment while keeping the
// separators intact.
func escapeObjectPath(object string) string {
	segments := strings.Split(object, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// canonicalQueryString sorts parameters by name and encodes per the V4 rules
// (spaces as %20, not +).
func canonicalQueryString(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range query[k] {
			parts = append(parts, url.QueryEscape(k)+"="+strings.ReplaceAll(url.QueryEscape(v), "+", "%20"))
		}
	}
	return strings.Join(parts, "&")
}
