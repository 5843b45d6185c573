package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	keyringcore "github.com/KeychainPGP/keyringcore"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt FILE FINGERPRINT...",
	Short: "Encrypt FILE for one or more recipients",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		plaintext, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		recipients := make([]keyringcore.Fingerprint, 0, len(args)-1)
		for _, raw := range args[1:] {
			fp, err := keyringcore.ParseFingerprint(raw)
			if err != nil {
				return err
			}
			recipients = append(recipients, fp)
		}
		ciphertext, err := svc.Encrypt(plaintext, recipients)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(ciphertext)
		return err
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt FILE",
	Short: "Decrypt FILE with whichever own-key unlocks it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		passphrase, _ := cmd.Flags().GetString("passphrase")

		armored, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		plaintext, signers, err := svc.Decrypt(armored, []byte(passphrase))
		if err != nil {
			return err
		}
		for _, signer := range signers {
			fmt.Fprintf(os.Stderr, "signed-by: %s (verified=%v)\n", signer.SignerFingerprint, signer.Valid)
		}
		_, err = os.Stdout.Write(plaintext)
		return err
	},
}

func init() {
	decryptCmd.Flags().String("passphrase", "", "unlock the secret key with this passphrase instead of the cache")
}

var signCmd = &cobra.Command{
	Use:   "sign FILE",
	Short: "Sign FILE with the active signing identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		passphrase, _ := cmd.Flags().GetString("passphrase")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		sig, err := svc.Sign(data, []byte(passphrase))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(sig)
		return err
	},
}

func init() {
	signCmd.Flags().String("passphrase", "", "unlock the active signing key with this passphrase")
}

var revokeCmd = &cobra.Command{
	Use:   "revoke FINGERPRINT",
	Short: "Regenerate a standalone revocation certificate for an own-key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		passphrase, _ := cmd.Flags().GetString("passphrase")
		fp, err := keyringcore.ParseFingerprint(args[0])
		if err != nil {
			return err
		}
		cert, err := svc.RevocationCertificate(fp, []byte(passphrase))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(cert)
		return err
	},
}

func init() {
	revokeCmd.Flags().String("passphrase", "", "unlock the secret key with this passphrase")
}

var verifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Verify a signed message against every known certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		armored, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		result, err := svc.Verify(armored)
		if err != nil {
			return err
		}
		if !result.Valid {
			fmt.Println("signature: invalid")
			return nil
		}
		fmt.Printf("signature: valid\nsigner:    %s\ntrust:     %s\n", result.SignerFingerprint, result.Trust)
		return nil
	},
}
