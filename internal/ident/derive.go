package ident

import (
	"crypto/sha256"
	"encoding/binary"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRoot         = "pledge/root/v1"
	DomainContinuation = "pledge/continuation/v1"
	DomainRemote       = "pledge/remote/v1"
	DomainAll          = "pledge/all/v1"
)

// hashWithDomain computes SHA-256 over domain-separated parts.
// Format: SHA256(domain + 0x00 + part + 0x00 + part + ...)
// The null separators prevent boundary ambiguity between parts.
func hashWithDomain(domain string, parts ...[]byte) PromiseID {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write(p)
	}
	var id PromiseID
	h.Sum(id[:0])
	return id
}

// seqBytes encodes a counter as fixed-width big-endian bytes so that
// derivations are unambiguous regardless of counter magnitude.
func seqBytes(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

// RootID derives the id of an explicitly created promise from its
// environment, creator, and the environment's logical clock reading.
// The clock component makes repeated Create calls yield distinct ids
// while keeping replays deterministic.
func RootID(environment, creator string, seq uint64) PromiseID {
	return hashWithDomain(DomainRoot,
		[]byte(environment),
		[]byte(creator),
		seqBytes(seq),
	)
}

// ContinuationID derives the id of a then-created continuation from
// the parent id and the parent's registration nonce.
//
// The nonce is a strictly increasing per-promise counter, not a global
// one: repeated then calls on the same parent yield distinct ids, and
// registrations on unrelated parents can never collide.
func ContinuationID(parent PromiseID, nonce uint64) PromiseID {
	return hashWithDomain(DomainContinuation,
		parent[:],
		seqBytes(nonce),
	)
}

// RemoteID derives the shared id of a cross-chain promise from the
// parent id, the destination environment, and the parent's
// registration nonce.
//
// The source computes this id to create its local proxy; the
// destination computes the same id when the setup message arrives.
// Forging an id requires predicting all three inputs, including the
// per-parent nonce.
func RemoteID(parent PromiseID, destEnv string, nonce uint64) PromiseID {
	return hashWithDomain(DomainRemote,
		parent[:],
		[]byte(destEnv),
		seqBytes(nonce),
	)
}

// AllID derives the id of a Promise.all aggregate from its ordered
// member set and the environment's logical clock reading. Two
// aggregates over the same members remain distinct.
func AllID(members []PromiseID, seq uint64) PromiseID {
	parts := make([][]byte, 0, len(members)+1)
	for i := range members {
		parts = append(parts, members[i][:])
	}
	parts = append(parts, seqBytes(seq))
	return hashWithDomain(DomainAll, parts...)
}
