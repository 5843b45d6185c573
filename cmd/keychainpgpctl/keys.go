package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	keyringcore "github.com/KeychainPGP/keyringcore"
)

var generateCmd = &cobra.Command{
	Use:   "generate NAME EMAIL",
	Short: "Generate a new own-key identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		passphrase, _ := cmd.Flags().GetString("passphrase")

		rec, err := svc.Generate(args[0], args[1], []byte(passphrase))
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	},
}

func init() {
	generateCmd.Flags().String("passphrase", "", "protect the new secret key with a passphrase")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every known key",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		recs, err := svc.List()
		if err != nil {
			return err
		}
		for _, rec := range recs {
			printRecord(rec)
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FINGERPRINT",
	Short: "Show the decoded view of a known certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		fp, err := keyringcore.ParseFingerprint(args[0])
		if err != nil {
			return err
		}
		rec, err := svc.Export(fp, false)
		if err != nil {
			return err
		}
		info, err := svc.Inspect(rec)
		if err != nil {
			return err
		}
		fmt.Printf("fingerprint: %s\nalgorithm:   %s\nhas_secret:  %v\n", info.Fingerprint, info.Algorithm, info.HasSecret)
		for _, uid := range info.UserIDs {
			fmt.Printf("user-id:     %s <%s>\n", uid.Name, uid.Email)
		}
		for _, sub := range info.Subkeys {
			fmt.Printf("subkey:      %s caps=%v revoked=%v\n", sub.Fingerprint, sub.Capabilities, sub.Revoked)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a certificate or secret key from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		blob, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		rec, err := svc.Import(blob)
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export FINGERPRINT",
	Short: "Export a certificate, optionally with its secret material",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		includeSecret, _ := cmd.Flags().GetBool("secret")
		fp, err := keyringcore.ParseFingerprint(args[0])
		if err != nil {
			return err
		}
		blob, err := svc.Export(fp, includeSecret)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(blob)
		return err
	},
}

func init() {
	exportCmd.Flags().Bool("secret", false, "include the secret key material (explicit opt-in required)")
}

var deleteCmd = &cobra.Command{
	Use:   "delete FINGERPRINT",
	Short: "Delete a key and its secret material, if any",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		fp, err := keyringcore.ParseFingerprint(args[0])
		if err != nil {
			return err
		}
		if err := svc.Delete(fp); err != nil {
			return err
		}
		fmt.Println("deleted", fp)
		return nil
	},
}

var trustCmd = &cobra.Command{
	Use:   "trust FINGERPRINT {unknown|imported|verified}",
	Short: "Set a contact certificate's trust level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		fp, err := keyringcore.ParseFingerprint(args[0])
		if err != nil {
			return err
		}
		level, err := parseTrustLevel(args[1])
		if err != nil {
			return err
		}
		return svc.SetTrust(fp, level)
	},
}

func parseTrustLevel(s string) (keyringcore.TrustLevel, error) {
	switch s {
	case "unknown":
		return keyringcore.TrustUnknown, nil
	case "imported":
		return keyringcore.TrustImported, nil
	case "verified":
		return keyringcore.TrustVerified, nil
	default:
		return keyringcore.TrustUnknown, fmt.Errorf("unknown trust level %q", s)
	}
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search known keys by name, email, or fingerprint suffix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		recs, err := svc.Search(args[0])
		if err != nil {
			return err
		}
		for _, rec := range recs {
			printRecord(rec)
		}
		return nil
	},
}

func printRecord(rec keyringcore.KeyRecord) {
	fmt.Printf("%s  own=%-5v trust=%-8s %s <%s>\n",
		rec.Fingerprint, rec.IsOwnKey, rec.TrustLevel, rec.PrimaryUserID.Name, rec.PrimaryUserID.Email)
}
