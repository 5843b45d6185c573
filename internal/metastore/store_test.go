package metastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

func rec(fp string, own bool, added time.Time) model.KeyRecord {
	return model.KeyRecord{
		Fingerprint:   model.Fingerprint(fp),
		PrimaryUserID: model.UserID{Name: "Alice", Email: "alice@example.com"},
		AllUserIDs:    []model.UserID{{Name: "Alice", Email: "alice@example.com"}},
		IsOwnKey:      own,
		AddedAt:       added,
		CreatedAt:     added,
	}
}

func runStoreContract(t *testing.T, s Store) {
	t.Helper()

	fp := model.Fingerprint("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	_, ok, err := s.Get(fp)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Upsert(rec(string(fp), true, time.Now())))

	got, ok, err := s.Get(fp)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.IsOwnKey)

	// reinsert replaces, never duplicates
	r2 := rec(string(fp), true, time.Now())
	r2.TrustLevel = model.TrustVerified
	require.NoError(t, s.Upsert(r2))
	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, model.TrustVerified, list[0].TrustLevel)

	require.NoError(t, s.SetTrust(fp, model.TrustImported))
	got, _, err = s.Get(fp)
	require.NoError(t, err)
	require.Equal(t, model.TrustImported, got.TrustLevel)

	found, err := s.Search("alice")
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, s.Delete(fp))
	_, ok, err = s.Get(fp)
	require.NoError(t, err)
	require.False(t, ok)

	// idempotent delete
	require.NoError(t, s.Delete(fp))

	err = s.SetTrust(fp, model.TrustVerified)
	require.True(t, kerr.Is(err, kerr.NotFound))
}

func TestMemoryContract(t *testing.T) {
	runStoreContract(t, NewMemory())
}

func TestBoltContract(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBolt(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	defer b.Close()
	runStoreContract(t, b)
}

func TestSearchOrdering(t *testing.T) {
	m := NewMemory()
	now := time.Now()

	contactOld := rec("BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", false, now.Add(-time.Hour))
	ownNew := rec("CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC", true, now)
	ownOld := rec("DDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD", true, now.Add(-2*time.Hour))

	require.NoError(t, m.Upsert(contactOld))
	require.NoError(t, m.Upsert(ownNew))
	require.NoError(t, m.Upsert(ownOld))

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	// own keys first, most-recent added_at first within that group
	require.Equal(t, ownNew.Fingerprint, list[0].Fingerprint)
	require.Equal(t, ownOld.Fingerprint, list[1].Fingerprint)
	require.Equal(t, contactOld.Fingerprint, list[2].Fingerprint)
}
