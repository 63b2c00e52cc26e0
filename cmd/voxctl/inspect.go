package main

import (
	"github.com/TecharoHQ/vox/lib/classifier"
	"github.com/TecharoHQ/vox/lib/features"
	"github.com/spf13/cobra"
)

// artifactView is what inspect prints. Weights are summarized, not dumped.
type artifactView struct {
	Version     string                 `json:"version"`
	Algorithm   string                 `json:"algorithm"`
	Dimension   int                    `json:"dimension"`
	FeatureHash string                 `json:"featureHash"`
	Features    features.Config        `json:"features"`
	Training    classifier.TrainConfig `json:"training"`
	Metrics     classifier.Metrics     `json:"metrics"`
	Compatible  bool                   `json:"compatibleWithDefaults"`
}

func viewOf(art *classifier.Artifact) artifactView {
	return artifactView{
		Version:     art.Version,
		Algorithm:   art.Train.Algorithm,
		Dimension:   art.Features.Dimension(),
		FeatureHash: art.Features.Hash(),
		Features:    art.Features,
		Training:    art.Train,
		Metrics:     art.Metrics,
		Compatible:  art.Features.Equal(features.DefaultConfig()),
	}
}

func newInspectCmd() *cobra.Command {
	var storeURL string

	cmd := &cobra.Command{
		Use:   "inspect [version]",
		Short: "Print the metadata of a published model as YAML",
		Long: `Inspect loads a model from --store and prints its feature configuration,
training settings and validation metrics. Without a version it shows the
model LATEST points at, which is what servers load.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(storeURL)
			if err != nil {
				return err
			}

			var art *classifier.Artifact
			if len(args) == 1 {
				art, err = reg.Load(cmd.Context(), args[0])
			} else {
				art, err = reg.LoadLatest(cmd.Context())
			}
			if err != nil {
				return err
			}

			return printYAML(cmd.OutOrStdout(), viewOf(art))
		},
	}

	cmd.Flags().StringVar(&storeURL, "store", "", "directory or s3:// URL models are published to")

	return cmd
}
