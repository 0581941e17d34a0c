package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"face-augmentor/internal/app"
	"face-augmentor/internal/config"
	"face-augmentor/internal/logger"

	"github.com/dustin/go-humanize"
	cli "github.com/spf13/cobra"
)

var rootCmd = &cli.Command{
	Use:           app.AppName,
	Short:         "Preprocess and augment face images into a training set",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	buildCmd.Flags().String("source", "", "directory of raw face images")
	buildCmd.Flags().StringP("output", "o", "", "directory for augmented images")
	buildCmd.Flags().IntP("workers", "w", 0, "number of images processed in parallel")
	buildCmd.Flags().Uint64("seed", 0, "seed for the random variants")
	buildCmd.Flags().Bool("no-progress", false, "disable the progress bar")

	augmentCmd.Flags().Uint64("seed", 0, "seed for the random variants")

	rootCmd.AddCommand(buildCmd, preprocessCmd, augmentCmd, versionCmd)
}

var buildCmd = &cli.Command{
	Use:   "build",
	Short: "Augment every image of the source directory",
	Args:  cli.NoArgs,
	RunE: func(cmd *cli.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("source") {
			cfg.DataBase.SourceDir, _ = flags.GetString("source")
		}
		if flags.Changed("output") {
			cfg.DataBase.AugmentedDir, _ = flags.GetString("output")
			if !rootCmd.PersistentFlags().Changed("config") {
				cfg.DataBase.ManifestPath = filepath.Join(cfg.DataBase.AugmentedDir, "manifest.db")
			}
		}
		if flags.Changed("workers") {
			cfg.RunBase.Workers, _ = flags.GetInt("workers")
		}
		if flags.Changed("seed") {
			cfg.RunBase.Seed, _ = flags.GetUint64("seed")
		}
		if noProgress, _ := flags.GetBool("no-progress"); noProgress {
			cfg.RunBase.Progress = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		return withApplication(cfg, func(a *app.Application) error {
			summary, err := a.Build()
			if summary != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d processed, %d skipped, %d failed of %d; %s written in %s\n",
					summary.RunID, summary.Processed, summary.Skipped, summary.Failed, summary.Total,
					humanize.Bytes(uint64(summary.BytesWritten)), summary.Duration.Round(time.Millisecond))
				for _, f := range summary.Failures {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", f.Source, f.Err)
				}
			}
			return err
		})
	},
}

var preprocessCmd = &cli.Command{
	Use:   "preprocess <input> <output>",
	Short: "Denoise an image and convert it to grayscale",
	Args:  cli.ExactArgs(2),
	RunE: func(cmd *cli.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return withApplication(cfg, func(a *app.Application) error {
			return a.PreprocessFile(args[0], args[1])
		})
	},
}

var augmentCmd = &cli.Command{
	Use:   "augment <input> <output-dir>",
	Short: "Write the five augmented variants of one image",
	Args:  cli.ExactArgs(2),
	RunE: func(cmd *cli.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		seed := cfg.RunBase.Seed
		if cmd.Flags().Changed("seed") {
			seed, _ = cmd.Flags().GetUint64("seed")
		}
		return withApplication(cfg, func(a *app.Application) error {
			res, err := a.AugmentFile(args[0], args[1], seed)
			if err != nil {
				return err
			}
			for _, out := range res.Outputs {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		})
	},
}

var versionCmd = &cli.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cli.NoArgs,
	Run: func(cmd *cli.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s %s/%s)\n",
			app.AppName, app.AppVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func withApplication(cfg *config.Config, fn func(a *app.Application) error) error {
	log := logger.NewConsoleLogger(logger.ParseLevel(cfg.LogLevel))
	a, err := app.NewApplication(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.Shutdown(ctx)
	}()
	return fn(a)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
