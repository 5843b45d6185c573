// Command keychainpgpctl is a thin demonstration shell over the Keyring
// Core: every subcommand maps directly onto one entry of the Service
// command surface. It exists to exercise the core end-to-end from a
// terminal; the real KeychainPGP application drives the same Service type
// from its Tauri/Svelte shell instead.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	keyringcore "github.com/KeychainPGP/keyringcore"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "keychainpgpctl",
	Short: "Drive the KeychainPGP keyring core from a terminal",
	Long: `keychainpgpctl is a demonstration command-line shell over the Keyring
Core library. It is not the KeychainPGP application itself — just the
orchestration layer's command surface, exposed directly.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("secrets-dir", defaultSecretsDir(), "directory for the File CredentialStore backend")
	rootCmd.PersistentFlags().String("metadata-path", defaultMetadataPath(), "bbolt database file for the MetadataStore")
	rootCmd.PersistentFlags().Bool("opsec", false, "start in hardened OPSEC mode (no disk writes)")
	rootCmd.PersistentFlags().Bool("prefer-file-backend", false, "skip the OS credential vault and use the File backend directly")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit structured logs as JSON instead of console format")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		generateCmd,
		listCmd,
		inspectCmd,
		importCmd,
		exportCmd,
		deleteCmd,
		trustCmd,
		searchCmd,
		encryptCmd,
		decryptCmd,
		signCmd,
		verifyCmd,
		revokeCmd,
		bundleCmd,
		opsecCmd,
		passphraseCacheCmd,
	)
}

func defaultSecretsDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./keychainpgp-secrets"
	}
	return dir + "/keychainpgp/secrets"
}

func defaultMetadataPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./keychainpgp-metadata.db"
	}
	return dir + "/keychainpgp/metadata.db"
}

// newService builds a Service from the persistent flags shared by every
// subcommand.
func newService(cmd *cobra.Command) (*keyringcore.Service, error) {
	secretsDir, _ := cmd.Flags().GetString("secrets-dir")
	metadataPath, _ := cmd.Flags().GetString("metadata-path")
	opsec, _ := cmd.Flags().GetBool("opsec")
	preferFile, _ := cmd.Flags().GetBool("prefer-file-backend")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	logLevel, _ := cmd.Flags().GetString("log-level")

	var logger zerolog.Logger
	if logJSON {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(logLevel); err == nil {
		logger = logger.Level(lvl)
	}

	return keyringcore.New(keyringcore.Config{
		SecretsDir:         secretsDir,
		MetadataPath:       metadataPath,
		OPSEC:              opsec,
		PreferFileBackend:  preferFile,
		Logger:             logger,
	})
}
