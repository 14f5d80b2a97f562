package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gkatanacio/bulkdl/auth"
	"github.com/gkatanacio/bulkdl/config"
	"github.com/gkatanacio/bulkdl/download"
	"github.com/gkatanacio/bulkdl/report"
)

var (
	flagOpts   config.Config
	configPath string
	inputPath  string
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:          "bulkdl [space-delimited URLs]",
	Short:        "Resumable bulk downloader for Earthdata Login protected archives.",
	Example:      "./bulkdl -i granules.txt -d ./data\n./bulkdl https://datapool.asf.alaska.edu/SLC/SA/S1A_IW_SLC__1.zip",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		targets, err := collectTargets(cfg, inputPath, args)
		if err != nil {
			return err
		}

		return run(cmd.Context(), cfg, targets, os.Stdout)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "file listing one \"<url> [md5]\" per line")
	rootCmd.Flags().StringVar(&flagOpts.CookieJar, "cookie-jar", "", "cookie file (default ~/"+auth.DefaultJarFileName+")")
	rootCmd.Flags().StringVarP(&flagOpts.DestDir, "dest-dir", "d", "", "directory to write files to (default current directory)")
	rootCmd.Flags().StringVar(&flagOpts.UserAgent, "user-agent", "", "User-Agent sent with every request")
	rootCmd.Flags().DurationVar(&flagOpts.ReadTimeout, "read-timeout", 0, "abort a file when no data arrives for this long")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not print the per-chunk progress line")
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		fileCfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	cfg = cfg.Merge(flagOpts)
	if noProgress {
		cfg.Progress = false
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

// collectTargets gathers targets from the config file, the input file and
// the command line, in that order.
func collectTargets(cfg config.Config, inputPath string, args []string) ([]download.Target, error) {
	var targets []download.Target

	for _, tc := range cfg.Targets {
		target, err := download.NewTarget(tc.URL, tc.MD5)
		if err != nil {
			return nil, fmt.Errorf("config targets: %w", err)
		}
		targets = append(targets, target)
	}

	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, fmt.Errorf("open input file: %w", err)
		}
		defer f.Close()

		fileTargets, err := download.ParseTargets(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", inputPath, err)
		}
		targets = append(targets, fileTargets...)
	}

	for _, arg := range args {
		target, err := download.NewTarget(arg, "")
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}

	return targets, nil
}

// run obtains a valid credential, downloads every target and prints the
// summary to out. The only error after target collection is a rejected
// credential renewal.
func run(ctx context.Context, cfg config.Config, targets []download.Target, out io.Writer) error {
	logger := log.New(os.Stderr, "[bulkdl] ", log.LstdFlags)

	if len(targets) == 0 {
		logger.Printf("no targets given, nothing to download")
		return report.Render(out, &download.Stats{})
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var provider auth.CredentialProvider = auth.NewTerminalPrompt(os.Stdin, out)
	if cfg.Username != "" {
		provider = auth.StaticCredentials{Username: cfg.Username, Password: cfg.Password}
	}

	store, err := auth.NewStore(auth.StoreOptions{
		JarPath:         cfg.CookieJar,
		ProfileURL:      cfg.ProfileURL,
		AuthURL:         cfg.AuthURL,
		UserAgent:       cfg.UserAgent,
		ValidateTimeout: cfg.ValidateTimeout,
		Provider:        provider,
		Logger:          logger,
		Output:          out,
	})
	if err != nil {
		return err
	}

	if err := store.Ensure(sigCtx); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DestDir, 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	opts := download.Options{
		DestDir:     cfg.DestDir,
		UserAgent:   cfg.UserAgent,
		ReadTimeout: cfg.ReadTimeout,
		ChunkSize:   cfg.ChunkSize,
		Jar:         store.Jar(),
		Logger:      logger,
		Output:      out,
	}
	if cfg.Progress {
		opts.Progress = download.NewConsoleProgress(out)
	}

	stats := runBatch(ctx, sigCtx, download.NewService(opts), targets, logger)

	return report.Render(out, stats)
}

// runBatch runs the batch beside a watcher. When interrupt is done the
// watcher cancels the batch, waits for it to wind down and logs how many
// targets were never started.
func runBatch(ctx, interrupt context.Context, svc *download.Service, targets []download.Target, logger *log.Logger) *download.Stats {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stats *download.Stats
	done := make(chan struct{})

	var eg errgroup.Group
	eg.Go(func() error {
		defer close(done)
		stats = svc.Run(runCtx, targets)
		return nil
	})
	eg.Go(func() error {
		select {
		case <-interrupt.Done():
			logger.Printf("interrupted: partial files are kept and resume on the next run")
			cancel()
			<-done
			logger.Printf("run %s: %d of %d targets abandoned", stats.RunID, stats.Abandoned, len(targets))
		case <-done:
		}
		return nil
	})
	_ = eg.Wait()

	return stats
}
