package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tube-transcriber/internal/cmdrun"
	"tube-transcriber/internal/config"
	"tube-transcriber/internal/diagnostics"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/fetch"
	"tube-transcriber/internal/ffmpeg"
	"tube-transcriber/internal/identity"
	"tube-transcriber/internal/transcribe"
	"tube-transcriber/internal/translate"
	"tube-transcriber/internal/youtube"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	modelSize    string
	device       string
	languageHint string
	chunkSeconds int
	maxWorkers   int
	proxies      []string
	verbose      bool
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "tubectl",
		Short:         "Transcribe and translate YouTube videos from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.modelSize, "model", "", "whisper model variant (tiny, base, small, medium, large, turbo)")
	root.PersistentFlags().StringVar(&opts.device, "device", "", "compute device for transcription (cpu, cuda)")
	root.PersistentFlags().StringVar(&opts.languageHint, "language-hint", "", "spoken language hint, or auto")
	root.PersistentFlags().IntVar(&opts.chunkSeconds, "chunk-seconds", 0, "segment length for long audio")
	root.PersistentFlags().IntVar(&opts.maxWorkers, "workers", 0, "max concurrent segment workers")
	root.PersistentFlags().StringSliceVar(&opts.proxies, "proxy", nil, "proxy URL for downloads (repeatable)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newTranscribeCommand(opts),
		newTranslateCommand(opts),
		newInfoCommand(opts),
		newLanguagesCommand(),
		newDoctorCommand(),
	)
	return root
}

// loadSettings merges persisted settings with CLI flag overrides.
func loadSettings(opts *cliOptions) (domain.Settings, error) {
	store := config.NewJSONStore(config.SettingsPath())
	settings, err := store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if opts.modelSize != "" {
		settings.ModelSize = opts.modelSize
	}
	if opts.device != "" {
		settings.Device = opts.device
	}
	if opts.languageHint != "" {
		settings.LanguageHint = opts.languageHint
	}
	if opts.chunkSeconds > 0 {
		settings.ChunkSeconds = opts.chunkSeconds
	}
	if opts.maxWorkers > 0 {
		settings.MaxWorkers = opts.maxWorkers
	}
	if len(opts.proxies) > 0 {
		settings.Proxies = opts.proxies
	}
	return settings, nil
}

func newLogger(opts *cliOptions) *slog.Logger {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// signalContext cancels on interrupt so partial downloads clean up.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newTranscribeCommand(opts *cliOptions) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "transcribe <url>",
		Short: "Produce a transcript for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := youtube.ExtractVideoID(args[0])
			if err != nil {
				return err
			}

			settings, err := loadSettings(opts)
			if err != nil {
				return err
			}
			logger := newLogger(opts)

			ctx, cancel := signalContext()
			defer cancel()

			runner := cmdrun.New()
			tool := ffmpeg.NewTool()
			rotator := identity.NewRotator(settings.Proxies)
			fetcher := fetch.New(
				[]fetch.Strategy{
					fetch.NewYtdlpStrategy(runner),
					fetch.NewHTTPRangeStrategy(runner),
				},
				rotator, tool, logger,
			)
			whisper := transcribe.NewWhisperTranscriber(settings.ModelSize, settings.Device, settings.LanguageHint)
			captions := youtube.NewCaptionClient(identity.DefaultUserAgent())

			orchestrator := transcribe.NewOrchestrator(captions, fetcher, tool, whisper, logger,
				transcribe.WithChunkSeconds(settings.ChunkSeconds),
				transcribe.WithMaxWorkers(settings.MaxWorkers),
				transcribe.WithStageNotifier(func(stage string) {
					logger.Info("pipeline stage", "stage", stage)
				}),
			)

			text, err := orchestrator.Transcribe(ctx, videoID)
			if err != nil {
				return err
			}

			if outputPath != "" {
				if err := os.WriteFile(outputPath, []byte(text+"\n"), 0o644); err != nil {
					return fmt.Errorf("write transcript: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "transcript written to", outputPath)
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write transcript to file instead of stdout")
	return cmd
}

func newTranslateCommand(opts *cliOptions) *cobra.Command {
	var inputPath string
	var model string

	cmd := &cobra.Command{
		Use:   "translate <language-code>",
		Short: "Translate transcript text from stdin or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetLang := args[0]
			if !translate.IsSupported(targetLang) {
				return fmt.Errorf("%w: %q (run 'tubectl languages' for the supported set)",
					translate.ErrUnsupportedLanguage, targetLang)
			}

			var text []byte
			var err error
			if inputPath != "" {
				text, err = os.ReadFile(inputPath)
			} else {
				text, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			logger := newLogger(opts)
			backend, err := translate.NewOpenAIBackend(model)
			if err != nil {
				return err
			}
			translator := translate.NewTranslator(backend, logger)

			ctx, cancel := signalContext()
			defer cancel()

			translated, err := translator.Translate(ctx, string(text), targetLang)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), translated)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "read transcript text from file instead of stdin")
	cmd.Flags().StringVar(&model, "translation-model", "", "chat model used for translation")
	return cmd
}

func newInfoCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <url>",
		Short: "Show video metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := youtube.ExtractVideoID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			client := youtube.NewMetadataClient(cmdrun.New(), newLogger(opts))
			info := client.VideoInfo(ctx, videoID)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(info)
		},
	}
}

func newLanguagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported translation target languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			languages := translate.SupportedLanguages()
			codes := make([]string, 0, len(languages))
			for code := range languages {
				codes = append(codes, code)
			}
			sort.Strings(codes)

			for _, code := range codes {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", code, languages[code])
			}
			return nil
		},
	}
}

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := config.NewJSONStore(config.SettingsPath())
			settings, err := store.Load()
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			report := diagnostics.NewChecker().Run(settings)
			for _, item := range report.Items {
				fmt.Fprintf(cmd.OutOrStdout(), "[%-4s] %-24s %s\n", item.Status, item.Name, item.Message)
				if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
					fmt.Fprintf(cmd.OutOrStdout(), "       hint: %s\n", item.Hint)
				}
			}

			if report.HasFailures {
				return fmt.Errorf("diagnostics reported failures")
			}
			return nil
		},
	}
}
