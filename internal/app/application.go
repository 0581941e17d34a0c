package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"face-augmentor/internal/augment"
	"face-augmentor/internal/config"
	"face-augmentor/internal/logger"
	"face-augmentor/internal/manifest"
	"face-augmentor/internal/pipeline"
	"face-augmentor/internal/preprocess"
)

const (
	AppName    = "face-augmentor"
	AppVersion = "1.0.0"
)

type shutdownHandler interface {
	Shutdown()
}

type shutdownFunc func()

func (f shutdownFunc) Shutdown() { f() }

// Application wires configuration, logging, the image pipeline and the
// manifest store for one command invocation.
type Application struct {
	cfg           *config.Config
	logger        logger.Logger
	preprocessor  *preprocess.Preprocessor
	augmenter     *augment.Augmenter
	coordinator   *pipeline.Coordinator
	shutdownables []shutdownHandler
	ctx           context.Context
	cancel        context.CancelFunc
	shutdown      chan struct{}
}

func NewApplication(cfg *config.Config, log logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewConsoleLogger(logger.ParseLevel(cfg.LogLevel))
	}

	log.Info("Application", "starting application", logger.Fields{
		"version":   AppVersion,
		"log_level": cfg.LogLevel,
		"workers":   cfg.RunBase.Workers,
	})

	pre, err := preprocess.New(cfg.Preprocess, log)
	if err != nil {
		return nil, err
	}
	aug, err := augment.New(cfg.Augment)
	if err != nil {
		return nil, err
	}
	coord, err := pipeline.NewCoordinator(pre, aug, coordinatorOptions(cfg), log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	application := &Application{
		cfg:          cfg,
		logger:       log,
		preprocessor: pre,
		augmenter:    aug,
		coordinator:  coord,
		ctx:          ctx,
		cancel:       cancel,
		shutdown:     make(chan struct{}),
	}

	application.setupSignalHandling()
	return application, nil
}

func coordinatorOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		ProcessedDir:     cfg.DataBase.ProcessedDir,
		AugmentedDir:     cfg.DataBase.AugmentedDir,
		Format:           cfg.OutputBase.Format,
		JPEGQuality:      cfg.OutputBase.JPEGQuality,
		SavePreprocessed: cfg.OutputBase.SavePreprocessed,
	}
}

func (a *Application) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			a.logger.Info("Application", "shutdown signal received", logger.Fields{
				"signal": sig.String(),
			})
			a.cancel()
		case <-a.ctx.Done():
		}
	}()
}

// Context is cancelled on SIGINT/SIGTERM or Shutdown.
func (a *Application) Context() context.Context {
	return a.ctx
}

func (a *Application) Config() *config.Config {
	return a.cfg
}

// Build augments every source image of the configured dataset directory.
func (a *Application) Build() (*pipeline.Summary, error) {
	var store *manifest.Store
	if a.cfg.DataBase.ManifestPath != "" {
		s, err := manifest.Open(a.ctx, a.cfg.DataBase.ManifestPath)
		if err != nil {
			return nil, err
		}
		store = s
		a.shutdownables = append(a.shutdownables, shutdownFunc(func() {
			if err := s.Close(); err != nil {
				a.logger.Error("Application", err, logger.Fields{"component": "manifest"})
			}
		}))
	}

	driver, err := pipeline.NewDriver(a.coordinator, store, pipeline.DriverOptions{
		SourceDir:       a.cfg.DataBase.SourceDir,
		Workers:         a.cfg.RunBase.Workers,
		Seed:            a.cfg.RunBase.Seed,
		SkipUnchanged:   a.cfg.RunBase.SkipUnchanged,
		ContinueOnError: a.cfg.RunBase.ContinueOnError,
		Progress:        a.cfg.RunBase.Progress,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	return driver.Run(a.ctx)
}

// PreprocessFile writes the denoised gray version of in to out.
func (a *Application) PreprocessFile(in, out string) error {
	img, err := a.preprocessor.PreprocessFile(in)
	if err != nil {
		return err
	}
	if _, err := a.coordinator.SaveImage(out, img); err != nil {
		return fmt.Errorf("failed to save %s: %w", out, err)
	}
	a.logger.Info("Application", "image preprocessed", logger.Fields{"input": in, "output": out})
	return nil
}

// AugmentFile writes the variants of a single image into outDir.
func (a *Application) AugmentFile(in, outDir string, seed uint64) (*pipeline.Result, error) {
	opts := coordinatorOptions(a.cfg)
	opts.AugmentedDir = outDir
	opts.SavePreprocessed = false

	coord, err := pipeline.NewCoordinator(a.preprocessor, a.augmenter, opts, a.logger)
	if err != nil {
		return nil, err
	}
	return coord.ProcessFile(a.ctx, in, augment.NewSource(seed, 0))
}

func (a *Application) initiateShutdown() {
	select {
	case <-a.shutdown:
		return
	default:
		close(a.shutdown)
	}

	a.cancel()

	for i := len(a.shutdownables) - 1; i >= 0; i-- {
		component := a.shutdownables[i]

		done := make(chan struct{})
		go func() {
			defer close(done)
			component.Shutdown()
		}()

		select {
		case <-done:
		case <-time.After(10 * time.Second):
			a.logger.Warning("Application", "component shutdown timeout", logger.Fields{
				"component_index": i,
			})
		}
	}

	a.logger.Debug("Application", "shutdown sequence completed", logger.Fields{
		"components": len(a.shutdownables),
	})
}

// Shutdown releases held resources. It is safe to call more than once.
func (a *Application) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.initiateShutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
