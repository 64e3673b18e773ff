// Package signer computes the tamper-protection signature that binds a
// request-phase redirection to its callback. The signature covers the
// provider transaction id, the amount in cents and the application context,
// so a callback carrying substituted parameters can be rejected.
package signer

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingSecret is returned when the signing secret is not configured.
var ErrMissingSecret = errors.New("signer: missing signing secret")

// Signer produces deterministic signatures keyed by a shared secret.
type Signer struct {
	secret string
}

// New creates a Signer. An empty secret is a configuration error.
func New(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: secret}, nil
}

// Compute returns the signature for a (transaction id, amount, context)
// triple. Context keys are sorted before serialization so the result does
// not depend on map iteration order.
func (s *Signer) Compute(transactionID string, amount int, context map[string]string) string {
	message := fmt.Sprintf("%s:%s:%d:%s", s.secret, transactionID, amount, contextString(context))

	mac := hmac.New(sha1.New, []byte(s.secret))
	mac.Write([]byte(message))

	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// contextString serializes a context map as key/value pairs appended in
// alphabetical key order.
func contextString(context map[string]string) string {
	if len(context) == 0 {
		return ""
	}

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(context[k])
	}
	return b.String()
}
