package codegen

import (
	"encoding/base32"
	"encoding/binary"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// DefaultIndexPrefix starts every synthesized index name
	DefaultIndexPrefix = "jv_"
	// MaxIdentifierLength is PostgreSQL's NAMEDATALEN - 1
	MaxIdentifierLength = 63
	// minDigestLength keeps at least 100 bits of digest in a name
	minDigestLength = 20
)

// identifierEncoding uses only [a-z2-7] so names never need quoting
var identifierEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// NameSynthesizer derives index names from their definition. The name is a
// fingerprint of (predicate, expression), so re-planning the same view always
// yields the same names and no registry of created indexes is needed.
type NameSynthesizer struct {
	Prefix    string
	MaxLength int
}

// NewNameSynthesizer creates a synthesizer. An empty prefix selects
// DefaultIndexPrefix.
func NewNameSynthesizer(prefix string) *NameSynthesizer {
	if prefix == "" {
		prefix = DefaultIndexPrefix
	}
	return &NameSynthesizer{Prefix: prefix, MaxLength: MaxIdentifierLength}
}

// Name returns the identifier for an index on expression restricted by predicate
func (s *NameSynthesizer) Name(predicate, expression string) string {
	limit := s.MaxLength
	if limit <= 0 || limit > MaxIdentifierLength {
		limit = MaxIdentifierLength
	}
	if limit < minDigestLength {
		limit = minDigestLength
	}

	prefix := s.Prefix
	if len(prefix) > limit-minDigestLength {
		prefix = prefix[:limit-minDigestLength]
	}

	digest := Fingerprint(predicate, expression)
	if room := limit - len(prefix); len(digest) > room {
		digest = digest[:room]
	}
	return prefix + digest
}

// Fingerprint returns the full identifier-safe digest of the given parts.
// Each part is length-framed so ("ab", "c") and ("a", "bc") differ.
func Fingerprint(parts ...string) string {
	h, _ := blake2b.New256(nil)

	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write([]byte(p))
	}

	return strings.ToLower(identifierEncoding.EncodeToString(h.Sum(nil)))
}
