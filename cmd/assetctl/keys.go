package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/supplyhub/backend/pkg/utils/crypto"
	"github.com/supplyhub/backend/pkg/utils/sshkeygen"
)

var (
	keygenPath      string
	keygenComment   string
	keygenOverwrite bool
	sealKey         string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create the Ed25519 key pair for the SFTP backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := keygenPath
		if path == "" {
			p, err := sshkeygen.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}

		kp, err := sshkeygen.Generate(path, keygenComment, keygenOverwrite)
		if err != nil {
			return err
		}
		if kp.Created {
			color.Green("key pair written to %s", kp.PrivateKeyPath)
		} else {
			color.Yellow("key pair already exists at %s (use --overwrite to replace)", kp.PrivateKeyPath)
		}
		fmt.Println("add this line to the server's authorized_keys:")
		fmt.Println(kp.AuthorizedKey)
		return nil
	},
}

var sealCmd = &cobra.Command{
	Use:   "seal <secret>",
	Short: "Encrypt a secret for use as an enc: config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := sealKey
		if key == "" {
			key = os.Getenv("SUPPLYHUB_SECURITY_ENCRYPTION_KEY")
		}
		sealed, err := crypto.SealSecret(args[0], key)
		if err != nil {
			return err
		}
		fmt.Println(sealed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd, sealCmd)
	keygenCmd.Flags().StringVarP(&keygenPath, "out", "o", "", "private key path (~/.ssh/supplyhub_ed25519 when empty)")
	keygenCmd.Flags().StringVar(&keygenComment, "comment", "supplyhub-uploader", "key comment")
	keygenCmd.Flags().BoolVar(&keygenOverwrite, "overwrite", false, "replace an existing key")
	sealCmd.Flags().StringVarP(&sealKey, "key", "k", "", "encryption key (SUPPLYHUB_SECURITY_ENCRYPTION_KEY when empty)")
}
