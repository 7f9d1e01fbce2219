package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/miaomc/passport/internal/verifier"
	"github.com/spf13/cobra"
)

type keygenConfig struct {
	bits int
	out  string
}

func newKeygenCmd() *cobra.Command {
	cfg := &keygenConfig{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the service RSA key pair",
		Long: `Generate an RSA key pair for the verifier. The public key is handed to
game servers; the private key is configured as verifier.private_key_path.
Without --out both PEM blocks are written to stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeygen(cmd, cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.bits, "bits", 2048, "RSA modulus size")
	cmd.Flags().StringVar(&cfg.out, "out", "", "directory for private.pem and public.pem")

	return cmd
}

func runKeygen(cmd *cobra.Command, cfg *keygenConfig) error {
	if cfg.bits < 2048 {
		return fmt.Errorf("--bits must be at least 2048, got %d", cfg.bits)
	}
	priv, pub, err := verifier.GenerateKeyPEM(cfg.bits)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	if cfg.out == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), string(priv), string(pub))
		return err
	}

	if err := os.MkdirAll(cfg.out, 0o700); err != nil {
		return err
	}
	privPath := filepath.Join(cfg.out, "private.pem")
	pubPath := filepath.Join(cfg.out, "public.pem")
	if err := os.WriteFile(privPath, priv, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privPath, pubPath)
	return err
}
