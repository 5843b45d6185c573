package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	keyringcore "github.com/KeychainPGP/keyringcore"
	"github.com/KeychainPGP/keyringcore/internal/bundle"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Export or import multi-key transfer bundles",
}

var bundleExportCmd = &cobra.Command{
	Use:   "export [FINGERPRINT...]",
	Short: "Package one or more keys into a transfer bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		asQR, _ := cmd.Flags().GetBool("qr")

		fps := make([]keyringcore.Fingerprint, 0, len(args))
		for _, raw := range args {
			fp, err := keyringcore.ParseFingerprint(raw)
			if err != nil {
				return err
			}
			fps = append(fps, fp)
		}

		export, err := svc.ExportBundle(fps)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, "transfer passphrase:", export.Passphrase)
		if asQR {
			for i, part := range export.QRParts {
				fmt.Printf("part %d/%d: %s\n", i+1, len(export.QRParts), part)
			}
			return nil
		}
		if out == "" {
			_, err := os.Stdout.Write(export.FileBlob)
			return err
		}
		return os.WriteFile(out, export.FileBlob, 0o600)
	},
}

func init() {
	bundleExportCmd.Flags().String("out", "", "write the bundle to this file instead of stdout")
	bundleExportCmd.Flags().Bool("qr", false, "emit animated-QR parts instead of a single file blob")
}

var bundleImportCmd = &cobra.Command{
	Use:   "import FILE PASSPHRASE",
	Short: "Import a transfer bundle produced by 'bundle export'",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		blob, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		result, err := svc.ImportBundle(string(blob), args[1])
		if err != nil {
			return err
		}
		printImportResult(result)
		return nil
	},
}

var bundleImportQRCmd = &cobra.Command{
	Use:   "import-qr PASSPHRASE PART...",
	Short: "Reassemble animated-QR parts (any order) and import the bundle",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		result, err := keyringcore.ImportBundleFromParts(svc, args[1:], args[0])
		if err != nil {
			return err
		}
		printImportResult(result)
		return nil
	},
}

func printImportResult(result bundle.ImportResult) {
	fmt.Printf("imported: %d  skipped: %d\n", result.ImportedCount, result.SkippedCount)
	for _, fp := range result.Imported {
		fmt.Println("  +", fp)
	}
}

func init() {
	bundleCmd.AddCommand(bundleExportCmd, bundleImportCmd, bundleImportQRCmd)
}
