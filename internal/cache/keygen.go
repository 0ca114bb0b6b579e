package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/blueberrycongee/cachemux/pkg/errors"
	"github.com/blueberrycongee/cachemux/pkg/types"
)

// Fingerprinter produces deterministic cache keys from normalized requests.
// Two requests with the same provider, model, messages, and sampling
// parameters always map to the same key; any semantic difference changes it.
type Fingerprinter struct{}

// NewFingerprinter creates a Fingerprinter.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{}
}

// Fingerprint returns the SHA-256 digest of the request's canonical form.
// The canonical form is a field-tagged serialization, so reordered JSON
// keys or transport-level noise never change the result.
func (g *Fingerprinter) Fingerprint(req *types.CacheRequest) (string, error) {
	if req == nil || req.Model == "" {
		return "", errors.NewInvalidRequestError("fingerprint requires a model")
	}
	if len(req.Messages) == 0 {
		return "", errors.NewInvalidRequestError("fingerprint requires at least one message")
	}

	var sb strings.Builder

	if req.Provider != "" {
		fmt.Fprintf(&sb, "provider:%s|", req.Provider)
	}
	fmt.Fprintf(&sb, "model:%s", req.Model)

	for _, m := range req.Messages {
		fmt.Fprintf(&sb, "|msg:%s=%s", m.Role, m.Content)
	}

	if req.Temperature != nil {
		fmt.Fprintf(&sb, "|temp:%.2f", *req.Temperature)
	}
	if req.MaxTokens > 0 {
		fmt.Fprintf(&sb, "|max_tokens:%d", req.MaxTokens)
	}
	if req.TopP != nil {
		fmt.Fprintf(&sb, "|top_p:%.2f", *req.TopP)
	}
	if len(req.Stop) > 0 {
		fmt.Fprintf(&sb, "|stop:%s", strings.Join(req.Stop, ","))
	}

	// Extra params iterate in sorted key order so map ordering cannot
	// leak into the digest.
	if len(req.Extra) > 0 {
		keys := make([]string, 0, len(req.Extra))
		for k := range req.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "|%s:%s", k, string(req.Extra[k]))
		}
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:]), nil
}

// Key returns the full storage key for a request: the namespace prefix
// followed by the fingerprint digest.
func (g *Fingerprinter) Key(req *types.CacheRequest) (string, error) {
	digest, err := g.Fingerprint(req)
	if err != nil {
		return "", err
	}
	return BuildKey(req.Namespace, digest), nil
}

// BuildKey joins a namespace and digest into a storage key.
func BuildKey(namespace, digest string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + ":" + digest
}

// DefaultNamespace is used when a request carries no namespace.
const DefaultNamespace = "default"
