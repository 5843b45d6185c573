package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var opsecCmd = &cobra.Command{
	Use:   "opsec",
	Short: "Control hardened no-disk mode and the session wrapping key",
}

var opsecEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Switch to volatile in-memory backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		svc.EnableOPSEC()
		fmt.Println("opsec: enabled")
		return nil
	},
}

var opsecDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Restore the persistent backends configured at startup",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		if err := svc.DisableOPSEC(); err != nil {
			return err
		}
		fmt.Println("opsec: disabled")
		return nil
	},
}

var opsecStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the session is currently in opsec mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		fmt.Println("opsec:", svc.IsOPSEC())
		return nil
	},
}

var opsecWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Destroy the session wrapping key and passphrase cache immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		svc.PanicWipe()
		fmt.Println("opsec: wiped")
		return nil
	},
}

func init() {
	opsecCmd.AddCommand(opsecEnableCmd, opsecDisableCmd, opsecStatusCmd, opsecWipeCmd)
}

var passphraseCacheCmd = &cobra.Command{
	Use:   "passphrase-cache",
	Short: "Manage the in-memory passphrase cache",
}

var passphraseCacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Evict every cached passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		svc.ClearPassphraseCache()
		fmt.Println("passphrase cache: cleared")
		return nil
	},
}

func init() {
	passphraseCacheCmd.AddCommand(passphraseCacheClearCmd)
}
