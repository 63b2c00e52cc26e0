package main

import (
	"fmt"
	"io"

	"github.com/TecharoHQ/vox"
	"github.com/TecharoHQ/vox/internal"
	"github.com/TecharoHQ/vox/lib/classifier/artifactstore"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

type theme struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Good  lipgloss.Style
	Bad   lipgloss.Style
	Dim   lipgloss.Style
}

var styles = theme{
	Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
	Label: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
	Good:  lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950")),
	Bad:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f85149")),
	Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
}

func newRootCmd() *cobra.Command {
	var slogLevel string

	root := &cobra.Command{
		Use:   "voxctl",
		Short: "Offline tooling for Vox bot classifiers",
		Long: `voxctl trains bot classifiers from labeled recordings, publishes them to
the model store a Vox server loads from, and probes running servers with
generated answers.

Examples:
  # Train from human/ and bot/ directories and publish
  voxctl train --dataset ./recordings --store s3://models/vox

  # Show what the server will load
  voxctl inspect --store s3://models/vox

  # Replay recordings against a server
  voxctl probe --url http://localhost:8923 --file attack.wav --attempts 20`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			internal.InitSlogTo(cmd.ErrOrStderr(), slogLevel)
		},
	}

	root.PersistentFlags().StringVar(&slogLevel, "slog-level", "WARN", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")

	root.AddCommand(newTrainCmd(), newInspectCmd(), newProbeCmd(), newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the voxctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "voxctl", vox.Version)
		},
	}
}

func openRegistry(storeURL string) (*artifactstore.Registry, error) {
	if storeURL == "" {
		return nil, fmt.Errorf("--store is required")
	}

	fs, err := artifactstore.Open(storeURL)
	if err != nil {
		return nil, err
	}

	return artifactstore.New(fs), nil
}

func printYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}
