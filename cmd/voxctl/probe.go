package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/vox"
	"github.com/TecharoHQ/vox/lib/harness"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	var (
		baseURL  string
		files    []string
		page     string
		install  bool
		headful  bool
		realIP   string
		attempts int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Submit generated answers to a running server and report how many get through",
		Long: `Probe plays an attacker against a running Vox. Every attempt asks for a
challenge, obtains an answer and submits it.

Answers come from recordings given with --file, replayed round robin, or
from a browser driven through playwright that loads --page and calls its
global voxSynthesize(phrase) function, which must resolve to base64 wav.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var src harness.Source

			switch {
			case len(files) != 0 && page != "":
				return errors.New("use either --file or --page, not both")
			case len(files) != 0:
				fs, err := harness.NewFileSource(files...)
				if err != nil {
					return err
				}
				src = fs
			case page != "":
				ps, err := harness.NewPlaywrightSource(harness.PlaywrightConfig{
					PageURL:  page,
					Install:  install,
					Headless: !headful,
				})
				if err != nil {
					return err
				}
				defer ps.Close()
				src = ps
			default:
				return errors.New("one of --file or --page is required")
			}

			client := harness.NewClient(baseURL)
			client.RealIP = realIP

			probe := &harness.Probe{
				Client:   client,
				Source:   src,
				Attempts: attempts,
				Interval: interval,
			}

			report, err := probe.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := printYAML(out, report); err != nil {
				return err
			}

			rate := styles.Good
			if report.Accepted > 0 {
				rate = styles.Bad
			}
			fmt.Fprintf(out, "%s %s\n", styles.Label.Render("block rate"), rate.Render(fmt.Sprintf("%.1f%%", report.BlockRate()*100)))

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&baseURL, "url", "http://localhost:8923", "base URL of the Vox server")
	f.StringSliceVar(&files, "file", nil, "recording to replay, repeatable")
	f.StringVar(&page, "page", "", "URL of a page exposing voxSynthesize(phrase)")
	f.BoolVar(&install, "install-browser", false, "download chromium before probing")
	f.BoolVar(&headful, "headful", false, "show the browser window")
	f.StringVar(&realIP, "real-ip", "", "X-Real-Ip to send, varying it sidesteps the per address rate limit")
	f.IntVar(&attempts, "attempts", 10, "number of challenges to answer")
	f.DurationVar(&interval, "interval", vox.DefaultRateLimitWindow, "pause between attempts")

	return cmd
}
