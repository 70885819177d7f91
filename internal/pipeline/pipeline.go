package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/antosikiss/replicator/internal/provider"
	"github.com/antosikiss/replicator/internal/store"
	"github.com/antosikiss/replicator/internal/store/model"
	"github.com/antosikiss/replicator/internal/worker"
	"github.com/antosikiss/replicator/pkg/metrics"
	"go.uber.org/zap"
)

const (
	// Airtable long-text cells degrade past this; the original cap is kept.
	errorMessageLimit = 500

	editPrompt = "Replace the person in image 1 with the person from image 2. " +
		"Keep the same pose, framing, lighting and background from image 1."
)

// Result is the verdict of a single pipeline run.
type Result string

const (
	ResultCompleted Result = "completed"
	ResultSkipped   Result = "skipped"
	ResultFailed    Result = "failed"
)

// Pipeline drives one record through the stage sequence
// claim -> resolve video -> generate images -> animate -> complete.
// Every stage's output is persisted before the next stage starts, so a
// rerun after a partial failure resumes instead of redoing work.
type Pipeline struct {
	store    store.Store
	adapters *provider.Adapters
	breaker  *worker.CircuitBreaker
	tracker  *worker.ProgressTracker
	settings *model.Settings

	toDataURI func(ctx context.Context, url string) (string, error)
}

func New(s store.Store, adapters *provider.Adapters, breaker *worker.CircuitBreaker, tracker *worker.ProgressTracker, settings *model.Settings) *Pipeline {
	return &Pipeline{
		store:     s,
		adapters:  adapters,
		breaker:   breaker,
		tracker:   tracker,
		settings:  settings,
		toDataURI: provider.URLToDataURI,
	}
}

// Process runs one record through the pipeline. Skips are deferrals, not
// verdicts: neither the breaker nor the tracker counts them. A returned
// error has already been persisted to the record.
func (p *Pipeline) Process(ctx context.Context, record *model.Record) (Result, error) {
	log := zap.S().Named("pipeline").With("record", record.ID)

	if record.Completed() {
		log.Info("output already present, skipping")
		return ResultSkipped, nil
	}
	if !p.breaker.CanProceed() {
		log.Warn("circuit breaker open, deferring job")
		return ResultSkipped, nil
	}

	start := time.Now()
	err := p.run(ctx, log, record)
	metrics.ObserveJobDuration(time.Since(start).Seconds())

	if err != nil {
		log.Errorf("job failed: %s", err)
		p.persistFailure(ctx, log, record, err)
		p.breaker.RecordFailure()
		p.tracker.Increment(false)
		return ResultFailed, err
	}

	p.breaker.RecordSuccess()
	p.tracker.Increment(true)
	log.Info("job completed")
	return ResultCompleted, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.SugaredLogger, record *model.Record) error {
	if err := validate(record); err != nil {
		return err
	}

	// Optimistic claim. Not a lock: a concurrent instance may still pick
	// the record up, the record store offers no compare-and-set.
	if err := p.store.Update(ctx, record.ID, map[string]any{
		model.FieldStatus: model.StatusProcessing,
	}); err != nil {
		log.Warnf("claim write failed, continuing: %s", err)
	}

	source, err := p.resolveVideo(ctx, log, record)
	if err != nil {
		return err
	}

	imageURLs, err := p.generateImages(ctx, log, record, source)
	if err != nil {
		return err
	}

	log.Infof("animating video at %s", p.settings.VideoResolution)
	video, err := p.adapters.Animator.Animate(ctx, provider.AnimateRequest{
		VideoURL:   source.VideoURL,
		ImageURL:   imageURLs[0],
		Resolution: p.settings.VideoResolution,
	})
	if err != nil {
		return fmt.Errorf("animating video: %w", err)
	}

	// The generation already succeeded; a failed final write must not
	// revert that, so it is only logged.
	if err := p.store.Update(ctx, record.ID, map[string]any{
		model.FieldOutputVideo:  model.AttachmentURLs(video.URL),
		model.FieldStatus:       model.StatusComplete,
		model.FieldErrorMessage: "",
		model.FieldGenerate:     false,
	}); err != nil {
		log.Errorf("persisting final output failed: %s", err)
	}
	return nil
}

func validate(record *model.Record) error {
	if !record.HasSource() {
		return fmt.Errorf("record has neither a Link nor a Source_Video")
	}
	if !record.HasCharacter() {
		return fmt.Errorf("record has no AI_Character reference")
	}
	return nil
}

// resolveVideo yields the source video and cover, scraping the social post
// only when the record does not already carry a resolved video.
func (p *Pipeline) resolveVideo(ctx context.Context, log *zap.SugaredLogger, record *model.Record) (*provider.SourceVideo, error) {
	fields := record.Fields

	if len(fields.SourceVideo) > 0 {
		att := fields.SourceVideo[0]
		source := &provider.SourceVideo{
			VideoURL: att.URL,
			Width:    att.Width,
			Height:   att.Height,
		}
		// Dimensions cannot be re-derived from an attachment; fall
		// back to the portrait default.
		if source.Width == 0 || source.Height == 0 {
			source.Width, source.Height = 720, 1280
		}
		if len(fields.CoverImage) > 0 {
			source.CoverURL = fields.CoverImage[0].URL
		}
		if source.CoverURL == "" {
			return nil, fmt.Errorf("record has a Source_Video but no Cover_Image")
		}
		log.Info("reusing existing source video")
		return source, nil
	}

	log.Infof("resolving source video from %s", fields.Link)
	source, err := p.adapters.Source.Resolve(ctx, fields.Link)
	if err != nil {
		return nil, fmt.Errorf("resolving source video: %w", err)
	}
	if source.CoverURL == "" && len(fields.CoverImage) > 0 {
		source.CoverURL = fields.CoverImage[0].URL
	}
	if source.CoverURL == "" {
		return nil, fmt.Errorf("no cover image available for %s", fields.Link)
	}

	// Persisted before the next stage so a crash does not re-scrape.
	update := map[string]any{
		model.FieldSourceVideo: model.AttachmentURLs(source.VideoURL),
		model.FieldCoverImage:  model.AttachmentURLs(source.CoverURL),
	}
	if err := p.store.Update(ctx, record.ID, update); err != nil {
		return nil, fmt.Errorf("persisting resolved video: %w", err)
	}
	return source, nil
}

// generateImages returns the URLs of the replacement-character images,
// reusing previously generated ones when present.
func (p *Pipeline) generateImages(ctx context.Context, log *zap.SugaredLogger, record *model.Record, source *provider.SourceVideo) ([]string, error) {
	if existing := record.Fields.GeneratedImages; len(existing) > 0 {
		log.Infof("reusing %d generated images", len(existing))
		urls := make([]string, 0, len(existing))
		for _, att := range existing {
			urls = append(urls, att.URL)
		}
		return urls, nil
	}

	references := []string{source.CoverURL, record.Fields.Character[0].URL}
	if p.adapters.Images.NeedsDataURI() {
		for i, ref := range references {
			dataURI, err := p.toDataURI(ctx, ref)
			if err != nil {
				return nil, fmt.Errorf("inlining reference image: %w", err)
			}
			references[i] = dataURI
		}
	}

	log.Infof("generating %d images", p.settings.NumImages)
	images, err := p.adapters.Images.Generate(ctx, provider.GenerateRequest{
		Prompt:              editPrompt,
		ReferenceImages:     references,
		Count:               p.settings.NumImages,
		EnableUnsafeContent: p.settings.EnableNSFW,
		Width:               source.Width,
		Height:              source.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("generating images: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("image generation returned no images")
	}

	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.URL)
	}
	if err := p.store.Update(ctx, record.ID, map[string]any{
		model.FieldGeneratedImages: model.AttachmentURLs(urls...),
	}); err != nil {
		return nil, fmt.Errorf("persisting generated images: %w", err)
	}
	return urls, nil
}

// persistFailure writes the error message and the Error status as two
// independent best-effort updates so one failing write does not suppress
// the other.
func (p *Pipeline) persistFailure(ctx context.Context, log *zap.SugaredLogger, record *model.Record, jobErr error) {
	msg := jobErr.Error()
	if len(msg) > errorMessageLimit {
		msg = msg[:errorMessageLimit]
	}

	if err := p.store.Update(ctx, record.ID, map[string]any{
		model.FieldErrorMessage: msg,
		model.FieldGenerate:     false,
	}); err != nil {
		log.Errorf("persisting error message failed: %s", err)
	}
	if err := p.store.Update(ctx, record.ID, map[string]any{
		model.FieldStatus: model.StatusError,
	}); err != nil {
		log.Errorf("persisting error status failed: %s", err)
	}
}
