package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"tube-transcriber/internal/cmdrun"
	"tube-transcriber/internal/config"
	"tube-transcriber/internal/diagnostics"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/fetch"
	"tube-transcriber/internal/ffmpeg"
	"tube-transcriber/internal/identity"
	"tube-transcriber/internal/jobs"
	"tube-transcriber/internal/transcribe"
	"tube-transcriber/internal/translate"
	"tube-transcriber/internal/youtube"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// transcriptService isolates the transcription pipeline behind an interface.
type transcriptService interface {
	Transcribe(ctx context.Context, videoID string) (string, error)
}

// translationService isolates the translation pipeline behind an interface.
type translationService interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// metadataService resolves display metadata for a video id.
type metadataService interface {
	VideoInfo(ctx context.Context, videoID string) domain.VideoInfo
}

// App wires configuration, jobs, pipelines, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Diagnostics domain.DiagnosticReport

	assets  fs.FS
	checker *diagnostics.Checker
	logger  *slog.Logger

	metadata       metadataService
	newTranscriber func(settings domain.Settings, onStage func(string)) transcriptService
	newTranslator  func(settings domain.Settings) (translationService, error)

	mu          sync.Mutex
	activeJobID string
	cancel      context.CancelFunc
	events      *jobs.EventBus
	runtimeCtx  context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(config.SettingsPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	checker := diagnostics.NewChecker()
	report := checker.Run(settings)
	runner := cmdrun.New()

	app := &App{
		Settings:    settings,
		Store:       store,
		Jobs:        jobs.NewManager(),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		logger:      logger,
		metadata:    youtube.NewMetadataClient(runner, logger),
		events:      jobs.NewEventBus(1000),
	}

	app.newTranscriber = func(settings domain.Settings, onStage func(string)) transcriptService {
		rotator := identity.NewRotator(settings.Proxies)
		tool := ffmpeg.NewTool()
		fetcher := fetch.New(
			[]fetch.Strategy{
				fetch.NewYtdlpStrategy(runner),
				fetch.NewHTTPRangeStrategy(runner),
			},
			rotator, tool, logger,
		)
		whisper := transcribe.NewWhisperTranscriber(settings.ModelSize, settings.Device, settings.LanguageHint)
		captions := youtube.NewCaptionClient(identity.DefaultUserAgent())

		return transcribe.NewOrchestrator(captions, fetcher, tool, whisper, logger,
			transcribe.WithChunkSeconds(settings.ChunkSeconds),
			transcribe.WithMaxWorkers(settings.MaxWorkers),
			transcribe.WithStageNotifier(onStage),
		)
	}

	app.newTranslator = func(settings domain.Settings) (translationService, error) {
		backend, err := translate.NewOpenAIBackend(settings.TranslationModel)
		if err != nil {
			return nil, err
		}
		return translate.NewTranslator(backend, logger), nil
	}

	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Tube Transcriber",
		Width:       1180,
		Height:      820,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	return a.Diagnostics, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// GetVideoInfo resolves display metadata for a video URL.
func (a *App) GetVideoInfo(rawURL string) (domain.VideoInfo, error) {
	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return domain.VideoInfo{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.metadata.VideoInfo(ctx, videoID), nil
}

// SupportedLanguages returns the translation target codes and display names.
func (a *App) SupportedLanguages() map[string]string {
	return translate.SupportedLanguages()
}

// StartTranscription creates a transcript job for a video URL and runs it
// asynchronously.
func (a *App) StartTranscription(rawURL string) (domain.Job, error) {
	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return domain.Job{}, err
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Job{}, fmt.Errorf("load settings: %w", err)
	}

	jobID := fmt.Sprintf("job-%d", time.Now().UnixNano())
	if err := a.Jobs.Start(jobID); err != nil {
		return domain.Job{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeJobID = jobID
	a.cancel = cancel
	a.Settings = settings
	a.mu.Unlock()

	a.publishStatus(jobID, domain.JobStatusFetching, "Job started")

	go a.runTranscriptionJob(ctx, jobID, videoID, settings)
	return a.Jobs.Current(), nil
}

// TranslateTranscript creates a translation job and runs it asynchronously.
func (a *App) TranslateTranscript(text, targetLang string) (domain.Job, error) {
	if !translate.IsSupported(targetLang) {
		return domain.Job{}, fmt.Errorf("%w: %q", translate.ErrUnsupportedLanguage, targetLang)
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Job{}, fmt.Errorf("load settings: %w", err)
	}

	jobID := fmt.Sprintf("job-%d", time.Now().UnixNano())
	if err := a.Jobs.StartTranslation(jobID); err != nil {
		return domain.Job{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeJobID = jobID
	a.cancel = cancel
	a.mu.Unlock()

	a.publishStatus(jobID, domain.JobStatusTranslating, "Translating into "+translate.DisplayName(targetLang))

	go a.runTranslationJob(ctx, jobID, text, targetLang, settings)
	return a.Jobs.Current(), nil
}

// CancelTranscription cancels the currently running job, if any.
func (a *App) CancelTranscription() error {
	a.mu.Lock()
	cancel := a.cancel
	activeJobID := a.activeJobID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoRunningJob
	}

	cancel()
	if err := a.Jobs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
		return err
	}

	if activeJobID != "" {
		a.publishStatus(activeJobID, domain.JobStatusCancelled, "Cancellation requested")
	}
	return nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// ExportTranscript writes transcript text into the configured output
// directory and returns the written path.
func (a *App) ExportTranscript(videoID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("transcript text is empty")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	if strings.TrimSpace(settings.OutputDir) == "" {
		return "", fmt.Errorf("output directory is not configured")
	}
	if err := os.MkdirAll(settings.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := fmt.Sprintf("transcript_%s_%d.txt", sanitizeFileName(videoID), time.Now().Unix())
	path := filepath.Join(settings.OutputDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// PickOutputDirectory opens a native directory picker for transcript exports.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// runTranscriptionJob executes the transcript pipeline and maps outcomes to
// job events.
func (a *App) runTranscriptionJob(ctx context.Context, jobID, videoID string, settings domain.Settings) {
	onStage := func(stage string) {
		status, ok := mapStageToStatus(stage)
		if !ok {
			return
		}
		if err := a.Jobs.Transition(status); err == nil {
			a.publishStatus(jobID, status, "Entered "+stage+" stage")
		}
	}

	pipeline := a.newTranscriber(settings, onStage)
	text, err := pipeline.Transcribe(ctx, videoID)
	if err != nil {
		a.finishJobWithError(ctx, jobID, err)
		return
	}

	if err := a.Jobs.Transition(domain.JobStatusDone); err == nil {
		a.publishStatus(jobID, domain.JobStatusDone, "Job completed")
	}
	a.publishEvent(jobs.Event{
		JobID:      jobID,
		Type:       jobs.EventTypeResult,
		Status:     domain.JobStatusDone,
		Message:    "Transcript ready",
		VideoID:    videoID,
		Transcript: text,
	})
	a.clearActiveJob(jobID)
}

// runTranslationJob executes one translation and maps outcomes to job events.
func (a *App) runTranslationJob(ctx context.Context, jobID, text, targetLang string, settings domain.Settings) {
	translator, err := a.newTranslator(settings)
	if err != nil {
		a.finishJobWithError(ctx, jobID, err)
		return
	}

	translated, err := translator.Translate(ctx, text, targetLang)
	if err != nil {
		a.finishJobWithError(ctx, jobID, err)
		return
	}

	if err := a.Jobs.Transition(domain.JobStatusDone); err == nil {
		a.publishStatus(jobID, domain.JobStatusDone, "Translation completed")
	}
	a.publishEvent(jobs.Event{
		JobID:      jobID,
		Type:       jobs.EventTypeResult,
		Status:     domain.JobStatusDone,
		Message:    "Translation ready",
		Transcript: translated,
		Language:   targetLang,
	})
	a.clearActiveJob(jobID)
}

// finishJobWithError distinguishes cancellation from failure and publishes
// the terminal events.
func (a *App) finishJobWithError(ctx context.Context, jobID string, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		_ = a.Jobs.Transition(domain.JobStatusCancelled)
		a.publishStatus(jobID, domain.JobStatusCancelled, "Job cancelled")
		a.clearActiveJob(jobID)
		return
	}

	_ = a.Jobs.Transition(domain.JobStatusFailed)
	a.publishStatus(jobID, domain.JobStatusFailed, "Job failed")
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeError,
		Status:  domain.JobStatusFailed,
		Message: err.Error(),
	})
	a.clearActiveJob(jobID)
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// clearActiveJob clears cancellation handles for completed job IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
		a.cancel = nil
	}
}

// mapStageToStatus maps pipeline stage names to job statuses.
func mapStageToStatus(stage string) (domain.JobStatus, bool) {
	switch stage {
	case transcribe.StageFetching:
		return domain.JobStatusFetching, true
	case transcribe.StageDownloading:
		return domain.JobStatusDownloading, true
	case transcribe.StageTranscribing:
		return domain.JobStatusTranscribing, true
	default:
		return "", false
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies defaults for empty or
// out-of-range values.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.ModelSize = strings.TrimSpace(settings.ModelSize)
	settings.Device = strings.TrimSpace(settings.Device)
	settings.LanguageHint = strings.TrimSpace(settings.LanguageHint)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.TranslationModel = strings.TrimSpace(settings.TranslationModel)

	if settings.ModelSize == "" {
		settings.ModelSize = defaults.ModelSize
	}
	if settings.Device == "" {
		settings.Device = defaults.Device
	}
	if settings.LanguageHint == "" {
		settings.LanguageHint = defaults.LanguageHint
	}
	if settings.ChunkSeconds <= 0 {
		settings.ChunkSeconds = defaults.ChunkSeconds
	}
	if settings.MaxWorkers <= 0 {
		settings.MaxWorkers = defaults.MaxWorkers
	}
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	}

	proxies := make([]string, 0, len(settings.Proxies))
	for _, proxy := range settings.Proxies {
		if trimmed := strings.TrimSpace(proxy); trimmed != "" {
			proxies = append(proxies, trimmed)
		}
	}
	settings.Proxies = proxies

	return settings
}

// sanitizeFileName keeps file names portable across platforms.
func sanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if cleaned == "" {
		return "video"
	}
	return cleaned
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
