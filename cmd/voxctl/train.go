package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/TecharoHQ/vox/lib"
	"github.com/TecharoHQ/vox/lib/classifier"
	"github.com/TecharoHQ/vox/lib/dataset"
	"github.com/TecharoHQ/vox/lib/features"
	"github.com/TecharoHQ/vox/lib/store"
	badgerstore "github.com/TecharoHQ/vox/lib/store/badger"
	"github.com/spf13/cobra"
)

type trainOptions struct {
	dataset    string
	store      string
	cache      string
	policy     string
	workers    int
	dryRun     bool
	trainCfg   classifier.TrainConfig
	featureCfg features.Config
}

func newTrainCmd() *cobra.Command {
	opts := trainOptions{
		trainCfg:   classifier.DefaultTrainConfig(),
		featureCfg: features.DefaultConfig(),
	}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier from labeled recordings and publish it",
		Long: `Train reads recordings from a dataset directory, either listed in
manifest.yaml or sorted into human/ and bot/ subdirectories, extracts
features in parallel and fits a classifier.

The artifact is published to --store and becomes what Vox servers load on
their next reload. Training refuses to publish when either class has fewer
than --min-examples recordings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.dataset, "dataset", "", "directory holding the labeled recordings")
	f.StringVar(&opts.store, "store", "", "directory or s3:// URL to publish the model to")
	f.StringVar(&opts.cache, "cache", "", "if set, directory for a badger feature cache reused across runs")
	f.StringVar(&opts.policy, "policy-fname", "", "policy document whose audio quality gate training applies (defaults to the built-in policy)")
	f.IntVar(&opts.workers, "workers", 0, "parallel extraction workers, 0 means one per CPU")
	f.BoolVar(&opts.dryRun, "dry-run", false, "train and report without publishing")

	f.StringVar(&opts.trainCfg.Algorithm, "algorithm", opts.trainCfg.Algorithm, "classifier to fit: logistic or gaussian_nb")
	f.Float64Var(&opts.trainCfg.LearningRate, "learning-rate", opts.trainCfg.LearningRate, "gradient descent step size")
	f.IntVar(&opts.trainCfg.Epochs, "epochs", opts.trainCfg.Epochs, "gradient descent epochs")
	f.Float64Var(&opts.trainCfg.L2, "l2", opts.trainCfg.L2, "L2 regularization strength")
	f.Uint64Var(&opts.trainCfg.Seed, "seed", opts.trainCfg.Seed, "seed for the train/validation split")
	f.Float64Var(&opts.trainCfg.ValidationSplit, "validation-split", opts.trainCfg.ValidationSplit, "fraction of examples held out for validation")
	f.IntVar(&opts.trainCfg.MinExamples, "min-examples", opts.trainCfg.MinExamples, "minimum recordings per class")

	f.IntVar(&opts.featureCfg.NumMels, "num-mels", opts.featureCfg.NumMels, "mel filter bank size")
	f.IntVar(&opts.featureCfg.NumCeps, "num-ceps", opts.featureCfg.NumCeps, "cepstral coefficients kept per frame")

	cmd.MarkFlagRequired("dataset")

	return cmd
}

func runTrain(cmd *cobra.Command, opts trainOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := opts.trainCfg.Valid(); err != nil {
		return err
	}

	if opts.store == "" && !opts.dryRun {
		return fmt.Errorf("--store is required unless --dry-run is set")
	}

	pol, err := lib.LoadPoliciesOrDefault(opts.policy)
	if err != nil {
		return err
	}

	ext, err := features.New(opts.featureCfg, pol.Quality)
	if err != nil {
		return err
	}

	sources, err := dataset.Scan(opts.dataset)
	if err != nil {
		return err
	}

	builder := &dataset.Builder{Extractor: ext, Workers: opts.workers}

	if opts.cache != "" {
		params, err := json.Marshal(badgerstore.Config{Path: opts.cache})
		if err != nil {
			return err
		}

		st, err := store.Build(ctx, "badger", params)
		if err != nil {
			return fmt.Errorf("can't open feature cache %s: %w", opts.cache, err)
		}
		if c, ok := st.(io.Closer); ok {
			defer c.Close()
		}

		builder.Cache = dataset.NewCache(st)
	}

	ds, report, err := builder.Build(ctx, sources)
	if err != nil {
		return err
	}

	human, bot := ds.Counts()
	slog.Info("dataset built", "dataset", ds, "extracted", report.Extracted, "cached", report.Cached)

	fmt.Fprintln(out, styles.Title.Render("dataset"))
	fmt.Fprintf(out, "  %s %d  %s %d  %s %d\n",
		styles.Label.Render("human"), human,
		styles.Label.Render("bot"), bot,
		styles.Dim.Render("cached"), report.Cached,
	)
	for reason, n := range report.Skipped {
		fmt.Fprintf(out, "  %s %s: %d\n", styles.Dim.Render("skipped"), reason, n)
	}

	art, err := classifier.Fit(ds, opts.trainCfg, ext.Config())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, styles.Title.Render("validation"))
	if err := printYAML(out, art.Metrics); err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintln(out, styles.Dim.Render("dry run, not publishing"))
		return nil
	}

	reg, err := openRegistry(opts.store)
	if err != nil {
		return err
	}

	version, err := reg.Publish(ctx, art)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s\n", styles.Good.Render("published"), version)
	return nil
}
