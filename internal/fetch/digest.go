package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/hob-build/hob/internal/recipe"
)

// FailedHash describes one digest that disagreed with what the recipe
// expected.
type FailedHash struct {
	Algo     string
	Found    string
	Expected string
}

func (f FailedHash) String() string {
	return fmt.Sprintf("%s: expected %s, found %s", f.Algo, f.Expected, f.Found)
}

type digestEntry struct {
	algo     string
	hasher   hash.Hash
	expected []byte
}

// DigestPool is an ordered list of incremental hashers, each paired with the
// expected digest the recipe's Verification declared. Update feeds every
// hasher; Finish compares each against its expectation.
type DigestPool struct {
	entries []digestEntry
}

// FromVerification builds a DigestPool with one entry per present field in
// v. An empty Verification yields an empty (always-passing) pool.
func FromVerification(v recipe.Verification) *DigestPool {
	p := &DigestPool{}
	if v.SHA256 != nil {
		p.entries = append(p.entries, digestEntry{
			algo:     "sha256",
			hasher:   sha256.New(),
			expected: v.SHA256[:],
		})
	}
	return p
}

// Update feeds b to every hasher in the pool.
func (p *DigestPool) Update(b []byte) {
	for i := range p.entries {
		p.entries[i].hasher.Write(b)
	}
}

// Finish compares every hasher's sum against its expectation. An empty
// result means every configured digest matched (or none were configured).
func (p *DigestPool) Finish() []FailedHash {
	var failed []FailedHash
	for _, e := range p.entries {
		sum := e.hasher.Sum(nil)
		if !equalBytes(sum, e.expected) {
			failed = append(failed, FailedHash{
				Algo:     e.algo,
				Found:    hex.EncodeToString(sum),
				Expected: hex.EncodeToString(e.expected),
			})
		}
	}
	return failed
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
