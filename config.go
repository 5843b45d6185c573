package keyringcore

import (
	"time"

	"github.com/rs/zerolog"
)

// Config is the single configuration structure the core reads. There are no
// ambient environment variable reads inside the core; a surrounding shell
// that wants to honor OS-level settings must translate them into this
// struct before calling New.
type Config struct {
	// SecretsDir is where the File CredentialStore backend keeps its
	// per-fingerprint key files. Required unless OPSEC is true.
	SecretsDir string
	// MetadataPath is the bbolt database file backing the MetadataStore.
	// Required unless OPSEC is true.
	MetadataPath string
	// OPSEC starts the session directly in hardened no-disk mode: the
	// CredentialStore and MetadataStore are both volatile from the first
	// command.
	OPSEC bool
	// PreferFileBackend skips probing the OS credential vault and goes
	// straight to the File backend. Useful in headless environments where
	// no Secret Service/Keychain/Credential Manager is reachable.
	PreferFileBackend bool
	// IncludeArmorMetadata is forwarded to CryptoEngine's armor headers
	// policy; default off, for minimum metadata leakage.
	IncludeArmorMetadata bool
	// PassphraseCacheTTL bounds how long a cached passphrase survives.
	// Zero selects a conservative default.
	PassphraseCacheTTL time.Duration
	// Logger receives structured, secret-free diagnostics. The zero value
	// is a no-op logger.
	Logger zerolog.Logger
}

const defaultPassphraseCacheTTL = 5 * time.Minute

func (c Config) passphraseCacheTTL() time.Duration {
	if c.PassphraseCacheTTL <= 0 {
		return defaultPassphraseCacheTTL
	}
	return c.PassphraseCacheTTL
}
