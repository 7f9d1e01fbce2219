package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/miaomc/passport/internal/verifier"
	"github.com/spf13/cobra"
)

// sealConfig describes a claim to seal the way a game server would.
type sealConfig struct {
	publicKeyPath string
	tokenID       string
	playerUUID    string
	playerName    string
	action        string
	ttl           time.Duration
	remoteToken   string
	salt          string
	version       string
}

type sealOutput struct {
	Data string `json:"data"`
	Hash string `json:"hash"`
}

func newSealCmd() *cobra.Command {
	cfg := &sealConfig{}

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Seal a player claim for testing the verify endpoint",
		Long: `Seal builds the data and hash query parameters a game server sends to
/passport/verifier/verify. The remote token must be the value the remote
info API returns for --token-id.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeal(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.publicKeyPath, "public-key", "", "service public key (PEM)")
	f.StringVar(&cfg.tokenID, "token-id", "", "remote token id (random UUID when empty)")
	f.StringVar(&cfg.playerUUID, "player-uuid", "", "player UUID")
	f.StringVar(&cfg.playerName, "player-name", "", "player name")
	f.StringVar(&cfg.action, "action", "login", "claimed action")
	f.DurationVar(&cfg.ttl, "ttl", 5*time.Minute, "claim lifetime")
	f.StringVar(&cfg.remoteToken, "remote-token", "", "remote token value for the hash")
	f.StringVar(&cfg.salt, "salt", "", "verifier salt")
	f.StringVar(&cfg.version, "algorithm-version", "1", "envelope algorithm version")
	_ = cmd.MarkFlagRequired("public-key")
	_ = cmd.MarkFlagRequired("player-uuid")
	_ = cmd.MarkFlagRequired("player-name")
	_ = cmd.MarkFlagRequired("remote-token")

	return cmd
}

func runSeal(cmd *cobra.Command, cfg *sealConfig) error {
	pemData, err := os.ReadFile(cfg.publicKeyPath)
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}
	pub, err := verifier.ParsePublicKeyPEM(pemData)
	if err != nil {
		return err
	}

	tokenID := cfg.tokenID
	if tokenID == "" {
		tokenID = uuid.NewString()
	}
	claim := verifier.Claim{
		TokenID:    tokenID,
		PlayerUUID: cfg.playerUUID,
		PlayerName: cfg.playerName,
		Action:     cfg.action,
		ExpireAt:   verifier.Millis(time.Now().Add(cfg.ttl).UnixMilli()),
	}

	sealed, err := verifier.Seal(pub, claim, json.Number(cfg.version))
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sealOutput{
		Data: sealed.Envelope,
		Hash: verifier.ComputeHash(sealed.PlainBase64, cfg.remoteToken, cfg.salt),
	})
}
