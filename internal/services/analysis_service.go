package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
)

const (
	fetchTimeout    = 1 * time.Minute
	analyzeTimeout  = 2 * time.Minute
	notifyTimeout   = 30 * time.Second
	resultsTemplate = "analysis_results_ready"
)

// AnalysisService runs the background pipeline for one application:
// extract text, call the analysis provider, persist the result, derive
// recommendations, backfill the candidate profile and notify the candidate.
//
// It runs off the critical path. Failures are recorded on the Document and
// Application rows for later inspection or manual re-trigger; there is no
// automatic retry loop.
type AnalysisService struct {
	db        core.DbClient
	fetcher   core.DocumentFetcher
	extractor core.DocumentExtractor
	analyzer  core.AnalysisProvider
	notifier  *NotificationService
	publisher core.JobPublisher
	logger    *zap.Logger
}

func NewAnalysisService(
	db core.DbClient,
	fetcher core.DocumentFetcher,
	extractor core.DocumentExtractor,
	analyzer core.AnalysisProvider,
	notifier *NotificationService,
	publisher core.JobPublisher,
	logger *zap.Logger,
) *AnalysisService {
	return &AnalysisService{
		db:        db,
		fetcher:   fetcher,
		extractor: extractor,
		analyzer:  analyzer,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
}

// Rerun re-enqueues an application on demand. This is the deliberate retry
// path after a pipeline failure.
func (s *AnalysisService) Rerun(ctx context.Context, applicationID string) error {
	app, err := s.db.GetApplicationByID(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("load application: %w", err)
	}
	if app == nil {
		return fmt.Errorf("application %s: %w", applicationID, core.ErrNotFound)
	}
	return s.publisher.PublishAnalysisJob(ctx, applicationID)
}

// Process handles one queued job. A non-nil return means an infrastructure
// problem before the pipeline claimed the job (worth a requeue); pipeline
// failures are recorded on rows and return nil so the job is not replayed.
func (s *AnalysisService) Process(ctx context.Context, applicationID string) error {
	log := s.logger.With(zap.String("application_id", applicationID))

	app, err := s.db.GetApplicationByID(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("load application: %w", err)
	}
	if app == nil {
		log.Warn("application gone, dropping job")
		return nil
	}

	doc, err := s.db.GetDocumentByID(ctx, app.DocumentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		log.Error("application references missing document", zap.String("document_id", app.DocumentID))
		_ = s.db.UpdateApplicationStatus(ctx, app.ID, models.ApplicationFailed)
		return nil
	}

	// Claim the job on the rows themselves; any worker can report pipeline
	// state purely from the database.
	if err := s.db.UpdateDocumentStatus(ctx, doc.ID, models.DocumentProcessing); err != nil {
		return fmt.Errorf("mark document processing: %w", err)
	}
	if err := s.db.UpdateApplicationStatus(ctx, app.ID, models.ApplicationProcessing); err != nil {
		return fmt.Errorf("mark application processing: %w", err)
	}

	job, text, err := s.loadInputs(ctx, app, doc)
	if err != nil {
		log.Error("pipeline input stage failed", zap.Error(err))
		s.fail(ctx, app, doc)
		return nil
	}

	analyzeCtx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	res, err := s.analyzer.Analyze(analyzeCtx, job, text)
	cancel()
	if err != nil {
		log.Error("analysis service call failed", zap.Error(err))
		s.fail(ctx, app, doc)
		return nil
	}

	if err := s.db.SaveAnalysisResult(ctx, app.ID, res); err != nil {
		log.Error("persist analysis result failed", zap.Error(err))
		s.fail(ctx, app, doc)
		return nil
	}
	if err := s.db.UpdateDocumentStatus(ctx, doc.ID, models.DocumentProcessed); err != nil {
		log.Error("mark document processed failed", zap.Error(err))
	}
	log.Info("analysis persisted", zap.Int("score", res.Score), zap.String("fit", res.FitLabel))

	// Post-analysis steps are best-effort: each is individually logged and
	// none of them undoes the persisted result.
	s.recommend(ctx, log, app, job, res)
	s.backfillProfile(ctx, log, app.CandidateID, res.Profile)
	s.notifyResults(ctx, log, app.CandidateID, job)

	return nil
}

// loadInputs fetches the job row and the extracted document text. The two
// legs are independent, so they run concurrently; either failure cancels the
// other.
func (s *AnalysisService) loadInputs(ctx context.Context, app *models.Application, doc *models.Document) (*models.Job, string, error) {
	var (
		job  *models.Job
		text string
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		j, err := s.db.GetJobByID(gctx, app.JobID)
		if err != nil {
			return fmt.Errorf("load job: %w", err)
		}
		if j == nil {
			return fmt.Errorf("job %s: %w", app.JobID, core.ErrNotFound)
		}
		job = j
		return nil
	})

	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(gctx, fetchTimeout)
		defer cancel()

		data, err := s.fetcher.Fetch(fetchCtx, doc.StorageURL)
		if err != nil {
			return fmt.Errorf("fetch document: %w", err)
		}
		t, err := s.extractor.Extract(fetchCtx, data, doc.ContentType)
		if err != nil {
			return fmt.Errorf("extract text: %w", err)
		}
		text = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, "", err
	}
	return job, text, nil
}

// fail stops the pipeline: document ERROR, application FAILED, prior
// analysis fields untouched, no notification.
func (s *AnalysisService) fail(ctx context.Context, app *models.Application, doc *models.Document) {
	if err := s.db.UpdateDocumentStatus(ctx, doc.ID, models.DocumentError); err != nil {
		s.logger.Error("mark document ERROR failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
	if err := s.db.UpdateApplicationStatus(ctx, app.ID, models.ApplicationFailed); err != nil {
		s.logger.Error("mark application FAILED failed", zap.String("application_id", app.ID), zap.Error(err))
	}
}

func (s *AnalysisService) recommend(ctx context.Context, log *zap.Logger, app *models.Application, job *models.Job, res *models.AnalysisResult) {
	recCtx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	text, err := s.analyzer.Recommend(recCtx, job, res)
	if err != nil {
		log.Error("recommendation generation failed", zap.Error(err))
		return
	}
	if err := s.db.SaveRecommendations(ctx, app.ID, text); err != nil {
		log.Error("persist recommendations failed", zap.Error(err))
	}
}

// backfillProfile fills empty candidate profile fields from analysis facts.
// Fields the candidate has edited themselves are never overwritten.
func (s *AnalysisService) backfillProfile(ctx context.Context, log *zap.Logger, candidateID string, facts models.ProfileFacts) {
	candidate, err := s.db.GetCandidateByID(ctx, candidateID)
	if err != nil || candidate == nil {
		log.Error("load candidate for backfill failed", zap.Error(err))
		return
	}
	if candidate.Profile.ProfileEdited {
		return
	}

	p := candidate.Profile
	changed := false
	if p.JobTitle == "" && facts.JobTitle != "" {
		p.JobTitle = facts.JobTitle
		changed = true
	}
	if p.YearsExperience == 0 && facts.YearsExperience > 0 {
		p.YearsExperience = facts.YearsExperience
		changed = true
	}
	if len(p.Skills) == 0 && len(facts.Skills) > 0 {
		p.Skills = facts.Skills
		changed = true
	}
	if p.Education == "" && facts.Education != "" {
		p.Education = facts.Education
		changed = true
	}
	if p.Summary == "" && facts.Summary != "" {
		p.Summary = facts.Summary
		changed = true
	}
	if !changed {
		return
	}

	if err := s.db.UpdateCandidateProfile(ctx, candidateID, p); err != nil {
		log.Error("profile backfill failed", zap.Error(err))
	}
}

func (s *AnalysisService) notifyResults(ctx context.Context, log *zap.Logger, candidateID string, job *models.Job) {
	candidate, err := s.db.GetCandidateByID(ctx, candidateID)
	if err != nil || candidate == nil {
		log.Error("load candidate for notification failed", zap.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if _, err := s.notifier.SendTemplate(sendCtx, candidate.Contact, resultsTemplate,
		[]string{job.Title, job.CompanyName}); err != nil {
		// Operationally significant: surfaced in logs for an operator, but
		// it does not undo the analysis.
		log.Error("results notification failed", zap.String("contact", candidate.Contact), zap.Error(err))
	}
}
