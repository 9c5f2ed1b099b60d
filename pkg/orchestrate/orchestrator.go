package orchestrate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"

	"image-scraper/pkg/config"
	"image-scraper/pkg/fetch"
	"image-scraper/pkg/models"
	"image-scraper/pkg/process"
	"image-scraper/pkg/storage"
	"image-scraper/pkg/utils"
)

// Status messages shown after a run
const (
	MsgNoImagesFound   = "No images found on the page."
	MsgNoValidImages   = "No valid images could be downloaded."
	msgDownloadedCount = "Downloaded %d image(s)."
)

// EventKind identifies what an Event reports
type EventKind int

const (
	EventDiscovered EventKind = iota + 1 // Page scanned, Discovered is set
	EventImageDone                       // One image finished, Result is set
)

// Event is delivered to the Run callback as the pipeline progresses
type Event struct {
	Kind       EventKind
	Discovered []string               // EventDiscovered
	Total      int                    // Number of images in the run
	Result     *models.DownloadResult // EventImageDone
}

// Status is the flash message of a finished run
type Status struct {
	Category string `json:"category"` // success, warning or danger
	Message  string `json:"message"`
}

// RunResult contains the result of one page run
type RunResult struct {
	RunID      string                  `json:"run_id,omitempty"`
	PageURL    string                  `json:"page_url"`
	Discovered []string                `json:"discovered"`
	Saved      []string                `json:"saved"`
	Rejected   int                     `json:"rejected"`
	Failed     int                     `json:"failed"`
	Status     Status                  `json:"status"`
	Results    []models.DownloadResult `json:"-"`
	Err        error                   `json:"-"` // Validation or page error that stopped the run
	StartedAt  time.Time               `json:"started_at"`
	Duration   time.Duration           `json:"duration"`
}

// Options customizes orchestrator construction
type Options struct {
	// HTTPClient replaces the client built from HTTPClientSettings
	HTTPClient *http.Client
	// Store receives image outcomes and run summaries. May be nil.
	Store storage.HistoryStore
}

// Orchestrator runs the scan-then-download pipeline for one page at a time.
// It holds no per-run state; a single instance may serve concurrent runs.
type Orchestrator struct {
	appCfg  *config.AppConfig
	log     *logrus.Entry
	saveDir *storage.SaveDir
	store   storage.HistoryStore

	scanner *process.PageScanner
	images  *process.ImageFetcher
}

// NewOrchestrator creates an orchestrator with the HTTP client described by appCfg
func NewOrchestrator(appCfg *config.AppConfig, store storage.HistoryStore, log *logrus.Entry) *Orchestrator {
	return NewOrchestratorWithOptions(appCfg, log, &Options{Store: store})
}

// NewOrchestratorWithOptions creates an orchestrator, letting tests inject the HTTP client
func NewOrchestratorWithOptions(appCfg *config.AppConfig, log *logrus.Entry, opts *Options) *Orchestrator {
	if opts == nil {
		opts = &Options{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = fetch.NewClient(appCfg.HTTPClientSettings, log)
	}
	fetcher := fetch.NewFetcher(httpClient, appCfg, log)

	var robots *fetch.RobotsHandler
	if appCfg.RespectRobotsTxt {
		robots = fetch.NewRobotsHandler(fetcher, appCfg.UserAgent, log)
	}

	saveDir := storage.NewSaveDir(appCfg.SaveDir)

	return &Orchestrator{
		appCfg:  appCfg,
		log:     log,
		saveDir: saveDir,
		store:   opts.Store,
		scanner: process.NewPageScanner(fetcher, robots, log.WithField("component", "scanner")),
		images:  process.NewImageFetcher(fetcher, robots, saveDir, appCfg, log.WithField("component", "image_fetcher")),
	}
}

// SaveDir returns the directory images are written to
func (o *Orchestrator) SaveDir() *storage.SaveDir {
	return o.saveDir
}

// Scanner returns the page scanner used by Run
func (o *Orchestrator) Scanner() *process.PageScanner {
	return o.scanner
}

// Run scans pageURL and downloads every discovered image in order.
// onEvent may be nil. The returned result always carries a Status.
func (o *Orchestrator) Run(ctx context.Context, pageURL string, onEvent func(Event)) *RunResult {
	result := &RunResult{
		PageURL:   pageURL,
		StartedAt: time.Now(),
	}
	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	parsed, err := process.ParsePageURL(pageURL)
	if err != nil {
		// Nothing touches the network or the filesystem for invalid input
		result.Err = err
		result.Status = Status{Category: models.CategoryWarning, Message: utils.UserMessage(err)}
		result.Duration = time.Since(result.StartedAt)
		return result
	}
	result.PageURL = parsed.String()
	result.RunID = uuid.NewString()
	runLog := o.log.WithFields(logrus.Fields{"run_id": result.RunID, "page_url": result.PageURL})
	defer o.finish(result, runLog)

	if err := o.saveDir.Ensure(); err != nil {
		runLog.Errorf("Cannot prepare save directory: %v", err)
		result.Err = err
		result.Status = Status{Category: models.CategoryDanger, Message: "The save directory could not be created."}
		return result
	}

	set, err := o.scanner.Scan(ctx, result.PageURL)
	if err != nil {
		runLog.Errorf("Page scan failed: %v", err)
		result.Err = err
		result.Status = Status{Category: models.CategoryDanger, Message: "Failed to fetch the page. " + utils.UserMessage(err)}
		return result
	}

	result.Discovered = set.URLs()
	emit(Event{Kind: EventDiscovered, Discovered: result.Discovered, Total: len(result.Discovered)})
	if len(result.Discovered) == 0 {
		result.Status = Status{Category: models.CategoryWarning, Message: MsgNoImagesFound}
		return result
	}

	result.Saved = make([]string, 0, len(result.Discovered))
	result.Results = make([]models.DownloadResult, 0, len(result.Discovered))

	for i, imgURL := range result.Discovered {
		if ctx.Err() != nil {
			runLog.Warnf("Run cancelled after %d of %d images", i, len(result.Discovered))
			break
		}

		res := o.fetchOne(ctx, imgURL, i+1)
		switch res.Outcome {
		case models.OutcomeSaved:
			result.Saved = append(result.Saved, res.Filename)
		case models.OutcomeRejected:
			result.Rejected++
		default:
			result.Failed++
		}
		result.Results = append(result.Results, res)
		o.recordImage(result.RunID, &res, runLog)
		emit(Event{Kind: EventImageDone, Total: len(result.Discovered), Result: &res})
	}

	if len(result.Saved) == 0 {
		result.Status = Status{Category: models.CategoryWarning, Message: MsgNoValidImages}
	} else {
		result.Status = Status{Category: models.CategorySuccess, Message: fmt.Sprintf(msgDownloadedCount, len(result.Saved))}
	}
	return result
}

// fetchOne downloads a single image; a panic inside the fetch becomes a Failed result
func (o *Orchestrator) fetchOne(ctx context.Context, imgURL string, index int) models.DownloadResult {
	var res models.DownloadResult
	recovered := panics.Try(func() {
		res = o.images.Fetch(ctx, imgURL, index)
	})
	if recovered != nil {
		o.log.WithField("img_url", imgURL).Errorf("Recovered from panic while fetching image: %v\n%s", recovered.Value, recovered.Stack)
		return models.DownloadResult{
			URL:     imgURL,
			Index:   index,
			Outcome: models.OutcomeFailed,
			Err:     fmt.Errorf("recovered: %w", recovered.AsError()),
		}
	}
	return res
}

func (o *Orchestrator) recordImage(runID string, res *models.DownloadResult, runLog *logrus.Entry) {
	if o.store == nil {
		return
	}
	entry := &models.ImageDBEntry{
		Status:      models.StatusForOutcome(res.Outcome),
		LocalPath:   res.Filename,
		ContentType: res.ContentType,
		RunID:       runID,
		LastAttempt: time.Now(),
	}
	if res.Err != nil {
		entry.ErrorType = utils.CategorizeError(res.Err)
	}
	if err := o.store.UpdateImageStatus(res.URL, entry); err != nil {
		runLog.Warnf("Failed to record image status for '%s': %v", res.URL, err)
	}
}

// finish stamps the duration, persists the run summary and logs it
func (o *Orchestrator) finish(result *RunResult, runLog *logrus.Entry) {
	result.Duration = time.Since(result.StartedAt)

	if o.store != nil {
		record := &models.RunRecord{
			ID:         result.RunID,
			PageURL:    result.PageURL,
			StartedAt:  result.StartedAt,
			FinishedAt: result.StartedAt.Add(result.Duration),
			Discovered: len(result.Discovered),
			Saved:      result.Saved,
			Rejected:   result.Rejected,
			Failed:     result.Failed,
			Category:   result.Status.Category,
			Message:    result.Status.Message,
		}
		if err := o.store.RecordRun(record); err != nil {
			runLog.Warnf("Failed to record run: %v", err)
		}
	}

	o.logSummary(result, runLog)
}

// logSummary logs a summary of a finished run
func (o *Orchestrator) logSummary(result *RunResult, runLog *logrus.Entry) {
	runLog.Info("============================================")
	runLog.Infof("Run completed in %v", result.Duration)
	runLog.Infof("  Discovered: %d", len(result.Discovered))
	runLog.Infof("  Saved:      %d", len(result.Saved))
	runLog.Infof("  Rejected:   %d", result.Rejected)
	runLog.Infof("  Failed:     %d", result.Failed)
	runLog.Info("--------------------------------------------")
	runLog.Infof("Status: %s - %s", result.Status.Category, result.Status.Message)
	runLog.Info("============================================")
}
