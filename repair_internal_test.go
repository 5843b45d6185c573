package keyringcore

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// These tests reach past the public command surface to simulate the kind of
// CredentialStore/MetadataStore drift Repair exists to reconcile — the sort
// of divergence an interrupted write or a manual backend edit can leave
// behind, not something the ordinary command surface can produce on its own.

func TestRepairDowngradesOwnKeyRecordMissingItsSecret(t *testing.T) {
	svc, err := New(Config{OPSEC: true, Logger: zerolog.Nop()})
	require.NoError(t, err)

	rec, err := svc.Generate("Laura Example", "laura@example.com", nil)
	require.NoError(t, err)

	_, meta := svc.store()
	require.NoError(t, svc.creds.Delete(rec.Fingerprint))

	require.NoError(t, svc.Repair())

	got, found, err := meta.Get(rec.Fingerprint)
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, got.IsOwnKey)
}

func TestRepairDeletesOrphanedSecret(t *testing.T) {
	svc, err := New(Config{OPSEC: true, Logger: zerolog.Nop()})
	require.NoError(t, err)

	rec, err := svc.Generate("Mallory Example", "mallory@example.com", nil)
	require.NoError(t, err)

	require.NoError(t, svc.meta.Delete(rec.Fingerprint))

	require.NoError(t, svc.Repair())

	_, found, err := svc.creds.Get(rec.Fingerprint)
	require.NoError(t, err)
	require.False(t, found)
}
