// Package metastore implements the indexed repository of KeyRecords: a
// transactional on-disk backend for normal operation and a volatile
// in-memory backend for OPSEC mode.
package metastore

import (
	"strings"

	"github.com/KeychainPGP/keyringcore/internal/model"
)

// Store is the contract both MetadataStore backends implement.
type Store interface {
	Upsert(rec model.KeyRecord) error
	Get(fp model.Fingerprint) (model.KeyRecord, bool, error)
	List() ([]model.KeyRecord, error)
	Delete(fp model.Fingerprint) error
	Search(query string) ([]model.KeyRecord, error)
	SetTrust(fp model.Fingerprint, level model.TrustLevel) error
	Close() error
}

// matches reports whether rec is a case-insensitive hit for query against
// name, email, or fingerprint suffix — the matching rule shared by every
// backend's Search implementation.
func matches(rec model.KeyRecord, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.HasSuffix(strings.ToLower(string(rec.Fingerprint)), q) {
		return true
	}
	for _, uid := range rec.AllUserIDs {
		if strings.Contains(strings.ToLower(uid.Name), q) || strings.Contains(strings.ToLower(uid.Email), q) {
			return true
		}
	}
	return false
}

// sortRecords orders own keys first, then by most-recent AddedAt, breaking
// ties on fingerprint ascending so results are deterministic.
func sortRecords(recs []model.KeyRecord) {
	less := func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.IsOwnKey != b.IsOwnKey {
			return a.IsOwnKey // true sorts first
		}
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.After(b.AddedAt)
		}
		return a.Fingerprint < b.Fingerprint
	}
	insertionSort(recs, less)
}

// insertionSort avoids pulling in sort.Slice's reflection-based closure for
// what is, in practice, a tiny in-memory slice of key records.
func insertionSort(recs []model.KeyRecord, less func(i, j int) bool) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}
