package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"duplicateimagefinder/finder"
	"duplicateimagefinder/imageprocessor"
	"duplicateimagefinder/logging"
	"duplicateimagefinder/output"
	"duplicateimagefinder/signalhandler"
	"duplicateimagefinder/types"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is the application version.
const Version = "1.0.0"

// envPrefix prefixes environment variables that provide flag defaults,
// e.g. DUPFINDER_CONFIDENCE=95 or DUPFINDER_HASH_SIZE=16
const envPrefix = "DUPFINDER_"

// Options holds the command line configuration
type Options struct {
	Confidence int
	CPUs       int
	Directory  string
	Compare    string
	OSXPhotos  bool
	Library    string
	Inverse    bool
	IndexOnly  bool
	Format     string
	Hash       string
	HashSize   int
	Debug      bool
	LogFile    string
	Quiet      bool
}

// NewRootCmd builds the command with its own set of options
func NewRootCmd() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "duplicateimagefinder",
		Short: "Find visually similar images in a folder or an Apple Photos library",
		Long: `Fingerprints every image below a folder (or in an Apple Photos library),
compares every pair of fingerprints and prints the groups of images that
look alike. With --compare, only images of the first folder are compared
with images of the second one.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnvDefaults(cmd.Flags()); err != nil {
				return err
			}
			return logging.SetupLogger(opts.LogFile, opts.Debug)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.CloseLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.Confidence, "confidence", "c", finder.DefaultThreshold, "at what percent (1-100) similarity should photos be flagged")
	f.IntVar(&opts.CPUs, "cpus", signalhandler.GetOptimalProcs(), "override number of cpu cores to use, default is to utilize all of them")
	f.StringVarP(&opts.Directory, "directory", "d", ".", "folder to start looking for photos")
	f.StringVar(&opts.Compare, "compare", "", "second folder; only pairs across the two folders are compared")
	f.BoolVar(&opts.OSXPhotos, "osxphotos", false, "scan the Photos app library on Mac")
	f.StringVar(&opts.Library, "library", "", "path of the Photos library to scan (implies --osxphotos)")
	f.BoolVar(&opts.Inverse, "inverse", false, "report pairs below the confidence instead of at or above it")
	f.BoolVar(&opts.IndexOnly, "index", false, "only index the photos and skip comparison and output steps")
	f.StringVarP(&opts.Format, "format", "f", string(output.FormatHuman), fmt.Sprintf("how the list of photos is presented %v", output.Formats))
	f.StringVar(&opts.Hash, "hash", string(imageprocessor.DefaultAlgorithm), fmt.Sprintf("fingerprint algorithm %v", imageprocessor.Algorithms))
	f.IntVar(&opts.HashSize, "hash-size", imageprocessor.DefaultHashSize, fmt.Sprintf("fingerprint side length %v", imageprocessor.HashSizes))
	f.BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	f.StringVar(&opts.LogFile, "logfile", "", "write the log to this file instead of stderr")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "hide progress bars")

	cmd.MarkFlagsMutuallyExclusive("directory", "osxphotos")
	cmd.MarkFlagsMutuallyExclusive("directory", "library")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	return cmd
}

// exclusiveSources lists, per source flag, the flags it cannot be combined with
var exclusiveSources = map[string][]string{
	"directory": {"osxphotos", "library"},
	"osxphotos": {"directory"},
	"library":   {"directory"},
}

// applyEnvDefaults sets every flag the user left alone from its
// DUPFINDER_* environment variable, if present. A source flag given on the
// command line suppresses the environment for the sources it excludes.
func applyEnvDefaults(flags *pflag.FlagSet) error {
	fromArgs := map[string]bool{}
	flags.Visit(func(fl *pflag.Flag) { fromArgs[fl.Name] = true })

	var err error
	flags.VisitAll(func(fl *pflag.Flag) {
		if err != nil || fl.Changed {
			return
		}
		for _, other := range exclusiveSources[fl.Name] {
			if fromArgs[other] {
				return
			}
		}
		name := envPrefix + strings.ToUpper(strings.ReplaceAll(fl.Name, "-", "_"))
		if v, ok := os.LookupEnv(name); ok {
			if setErr := flags.Set(fl.Name, v); setErr != nil {
				err = fmt.Errorf("invalid %s: %w", name, setErr)
			}
		}
	})
	if err != nil {
		return err
	}
	return checkSources(flags)
}

// checkSources rejects a directory combined with a Photos library, which
// cobra cannot see when one of them comes from the environment
func checkSources(flags *pflag.FlagSet) error {
	if !flags.Changed("directory") {
		return nil
	}
	photos, _ := flags.GetBool("osxphotos")
	library, _ := flags.GetString("library")
	if photos || library != "" {
		return &types.ConfigurationError{
			Field:  "directory",
			Reason: "cannot be combined with --osxphotos or --library",
		}
	}
	return nil
}

// Execute runs the root command until it finishes or the user interrupts it
func Execute() {
	// A .env file in the working directory may hold DUPFINDER_* defaults
	_ = godotenv.Load()

	ctx, stop := signalhandler.NotifyContext(context.Background())
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		logging.LogError("Run failed: %v", err)
	}
	// post-run hooks are skipped when RunE fails
	logging.CloseLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
