package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/labelforge/labelforge/internal/config"
)

// seedManifest is the YAML file consumed by the seed command.
type seedManifest struct {
	Assets []seedAsset `yaml:"assets"`
}

type seedAsset struct {
	ExternalID string `yaml:"external_id"`
	Content    string `yaml:"content"`
}

func NewSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bulk-ingest assets into the project",
		Long: `Read a YAML manifest of assets and append them to the configured project in
one store call. Entries without an external id get a generated one. Seeding is
a one-off setup step; the loop never ingests assets itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the asset manifest (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(ctx context.Context, file string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", file, err)
	}

	var manifest seedManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", file, err)
	}
	if len(manifest.Assets) == 0 {
		return fmt.Errorf("manifest %s contains no assets", file)
	}

	contents := make([]string, 0, len(manifest.Assets))
	externalIDs := make([]string, 0, len(manifest.Assets))
	for i, asset := range manifest.Assets {
		if asset.Content == "" {
			return fmt.Errorf("asset %d in %s has empty content", i, file)
		}
		externalID := asset.ExternalID
		if externalID == "" {
			externalID = uuid.NewString()
		}
		contents = append(contents, asset.Content)
		externalIDs = append(externalIDs, externalID)
	}

	store := newStoreClient(cfg)
	if err := store.AppendAssets(ctx, cfg.ProjectID, contents, externalIDs); err != nil {
		return err
	}

	log.Info().
		Int("count", len(contents)).
		Str("project_id", cfg.ProjectID).
		Msg("Seeded assets")

	return nil
}
