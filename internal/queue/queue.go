// Package queue is the Job Queue & Orchestrator (Stage 8, component H):
// the process-wide admission gate and per-bill pipeline driver. Its
// admission loop is a continuous-polling sweep (context-based graceful
// shutdown, ticker-driven admission retries) generalized from a single
// scheduled batch into a per-job admission gate backed by Redis.
package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leginote/fiscalnote/internal/attribution"
	"github.com/leginote/fiscalnote/internal/browser"
	"github.com/leginote/fiscalnote/internal/changes"
	"github.com/leginote/fiscalnote/internal/chronology"
	"github.com/leginote/fiscalnote/internal/config"
	"github.com/leginote/fiscalnote/internal/documents"
	"github.com/leginote/fiscalnote/internal/fiscalnote"
	"github.com/leginote/fiscalnote/internal/llm"
	"github.com/leginote/fiscalnote/internal/models"
	"github.com/leginote/fiscalnote/internal/numbers"
	"github.com/leginote/fiscalnote/internal/portal"
	"github.com/leginote/fiscalnote/internal/store"
)

// Kind is one of the stable error-kind identifiers from the error taxonomy.
type Kind string

const (
	KindBotChallenge        Kind = "BotChallengeDetected"
	KindNavigationTimeout   Kind = "NavigationTimeout"
	KindDownloadTimeout     Kind = "DownloadTimeout"
	KindEmptyBill           Kind = "EmptyBill"
	KindDocumentFetchFailed Kind = "DocumentFetchFailed"
	KindLLMSchemaFailure    Kind = "LLMSchemaFailure"
	KindLLMTransportError   Kind = "LLMTransportError"
	KindTimeout             Kind = "Timeout"
	KindCancelRequested     Kind = "CancelRequested"
)

// JobError pairs a fatal failure with its stable kind for metadata.
type JobError struct {
	Kind Kind
	Err  error
}

func (e *JobError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *JobError) Unwrap() error { return e.Err }

const admissionPollInterval = 5 * time.Second

// Orchestrator owns the in-memory job map, the Redis-backed liveness
// store, and the dependencies each pipeline stage needs.
type Orchestrator struct {
	cfg    *config.Config
	kv     *redis.Client
	db     *gorm.DB
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[string]*models.Job
}

// New wires an Orchestrator from cfg. db may be nil, in which case job
// state is mirrored only in memory, not to the read index.
func New(cfg *config.Config, db *gorm.DB) *Orchestrator {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:    cfg,
		kv:     redis.NewClient(&redis.Options{Addr: cfg.KVAddress}),
		db:     db,
		logger: logger,
		jobs:   make(map[string]*models.Job),
	}
}

// Enqueue is idempotent: if bill is already queued or running it returns
// the existing job record unchanged, otherwise it starts a new admission
// goroutine and returns the freshly queued record.
func (o *Orchestrator) Enqueue(id models.BillID) *models.Job {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := id.Canonical()
	if j, ok := o.jobs[key]; ok && (j.State == models.JobQueued || j.State == models.JobRunning) {
		return j
	}

	job := &models.Job{ID: key, State: models.JobQueued}
	o.jobs[key] = job
	o.logger.Info("job enqueued", zap.String("bill_id", key))
	go o.admitAndRun(context.Background(), id, job)
	return job
}

// Job returns the current in-memory record for billID, if any.
func (o *Orchestrator) Job(billID string) (*models.Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[billID]
	return j, ok
}

// Cancel marks a queued or running job's cancellation flag. The job
// itself checks this cooperatively between documents and checkpoints.
func (o *Orchestrator) Cancel(billID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[billID]
	if !ok {
		return false
	}
	j.CancelReq = true
	return true
}

func (o *Orchestrator) admitAndRun(ctx context.Context, id models.BillID, job *models.Job) {
	ticker := time.NewTicker(admissionPollInterval)
	defer ticker.Stop()

	for {
		admitted, err := o.tryAdmit(ctx, job.ID)
		if err != nil {
			o.finish(job, &JobError{Kind: KindLLMTransportError, Err: err})
			return
		}
		if admitted {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
	defer cancel()
	defer o.kv.Del(ctx, liveKey(job.ID))

	runID := uuid.New().String()
	o.mu.Lock()
	job.State = models.JobRunning
	job.StartedAt = time.Now().UTC().Format(time.RFC3339)
	o.mu.Unlock()
	o.mirrorJobRecord(ctx, job)

	log := o.logger.With(zap.String("bill_id", job.ID), zap.String("run_id", runID))
	log.Info("job admitted, pipeline starting")

	err := o.runPipeline(jobCtx, id, job, log)
	if err != nil {
		log.Error("pipeline failed", zap.Error(err))
	} else {
		log.Info("pipeline complete")
	}
	o.finish(job, err)
}

// tryAdmit checks the admission gate (count of live job:* keys against
// MAX_CONCURRENT_JOBS) and, if there is room, claims the liveness key.
func (o *Orchestrator) tryAdmit(ctx context.Context, jobID string) (bool, error) {
	var keys []string
	iter := o.kv.Scan(ctx, 0, "job:*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return false, fmt.Errorf("queue: scan liveness keys: %w", err)
	}
	if len(keys) >= o.cfg.MaxConcurrentJobs {
		return false, nil
	}
	ok, err := o.kv.SetNX(ctx, liveKey(jobID), "running", o.cfg.JobTimeout).Result()
	if err != nil {
		return false, fmt.Errorf("queue: set liveness key: %w", err)
	}
	return ok, nil
}

func liveKey(jobID string) string { return "job:" + jobID }

func (o *Orchestrator) finish(job *models.Job, err error) {
	o.mu.Lock()
	job.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	if err != nil {
		job.State = models.JobFailed
		job.Error = err.Error()
		var jerr *JobError
		if errors.As(err, &jerr) {
			job.ErrorKind = string(jerr.Kind)
		}
	} else {
		job.State = models.JobDone
	}
	o.mu.Unlock()
	o.mirrorJobRecord(context.Background(), job)
}

func (o *Orchestrator) mirrorJobRecord(ctx context.Context, job *models.Job) {
	if o.db == nil {
		return
	}
	rec := models.JobRecord{
		BillCanonicalID: job.ID,
		State:           string(job.State),
		ErrorKind:       job.ErrorKind,
		ErrorMessage:    job.Error,
	}
	o.db.WithContext(ctx).Where("bill_canonical_id = ?", job.ID).
		Assign(rec).FirstOrCreate(&models.JobRecord{BillCanonicalID: job.ID})
}

// upsertBillRecord creates bill's read-index row if absent and updates
// exactly the named columns, so one caller updating chronology_degraded
// never clobbers a value another caller already wrote to latest_checkpoint
// (or vice versa).
func (o *Orchestrator) upsertBillRecord(ctx context.Context, rec models.BillRecord, columns []string) {
	if o.db == nil {
		return
	}
	o.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canonical_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&rec)
}

// runPipeline drives stages B through I sequentially for one bill,
// persisting every artifact named in the external-interfaces filesystem
// layout as it goes. Stage results are handed on in memory; a run always
// starts again from the portal scrape and does not read back artifacts
// that an earlier, interrupted run left on disk.
func (o *Orchestrator) runPipeline(ctx context.Context, id models.BillID, job *models.Job, log *zap.Logger) error {
	bill, err := store.New(o.cfg.BillsRoot, id.Canonical())
	if err != nil {
		return err
	}

	log.Info("opening browser session")
	session, err := browser.Open(ctx, filepath.Join(bill.Dir(), "downloads"), job.ID)
	if err != nil {
		return classifyBrowserErr(err)
	}
	defer session.Close()

	llmClient, err := llm.New(ctx,
		llm.WithAPIKey(o.cfg.GeminiAPIKey),
		llm.WithModel(o.cfg.GeminiModel),
		llm.WithEmbedModel(o.cfg.EmbedModel))
	if err != nil {
		return &JobError{Kind: KindLLMTransportError, Err: err}
	}
	defer llmClient.Close()

	log.Info("scraping portal")
	envelope, err := portal.Scrape(ctx, session, o.cfg.PortalHost, id)
	if err != nil {
		if errors.Is(err, portal.ErrEmptyBill) {
			return &JobError{Kind: KindEmptyBill, Err: err}
		}
		return classifyBrowserErr(err)
	}
	if err := store.WriteJSON(bill.EnvelopePath(), envelope); err != nil {
		return err
	}

	log.Info("resolving chronology", zap.Int("status_rows", len(envelope.StatusRows)), zap.Int("documents", len(envelope.Documents)))
	chronResult, err := chronology.Resolve(ctx, llmClient, envelope.StatusRows, envelope.Documents, envelope.CommitteeReportNames)
	if err != nil {
		return &JobError{Kind: KindLLMTransportError, Err: err}
	}
	if chronResult.Degraded {
		log.Warn("chronology resolution degraded to deterministic fallback")
	}
	if err := store.WriteJSON(bill.ChronologyPath(), chronResult); err != nil {
		return err
	}
	o.upsertBillRecord(ctx, models.BillRecord{
		CanonicalID:        id.Canonical(),
		Chamber:            id.Chamber,
		Number:             id.Number,
		Year:               id.Year,
		ChronologyDegraded: chronResult.Degraded,
	}, []string{"chamber", "number", "year", "chronology_degraded"})

	docsInOrder, err := o.fetchDocuments(ctx, bill, session, envelope, chronResult, job, log)
	if err != nil {
		return err
	}
	log.Info("documents fetched", zap.Int("count", len(docsInOrder)))

	var occurrences []models.MoneyOccurrence
	for _, d := range docsInOrder {
		for _, occ := range numbers.Extract(d.Text) {
			occurrences = append(occurrences, models.MoneyOccurrence{
				Amount:      occ.Amount,
				Currency:    "USD",
				Filename:    d.Name + ".txt",
				Context:     occ.Context,
				OffsetChars: occ.OffsetChars,
			})
		}
	}
	if err := store.WriteJSON(bill.NumbersPath(), occurrences); err != nil {
		return err
	}

	log.Info("extracted money occurrences", zap.Int("count", len(occurrences)))

	notes, err := fiscalnote.Run(ctx, llmClient, docsInOrder, occurrences)
	if err != nil {
		return &JobError{Kind: KindLLMSchemaFailure, Err: err}
	}
	log.Info("fiscal notes generated", zap.Int("checkpoints", len(notes)))

	citations := attribution.NewCitationTable()
	var prevBody models.FiscalNote
	havePrev := false
	var prevCheckpoint string

	for _, emitted := range notes {
		if job.CancelReq {
			return &JobError{Kind: KindCancelRequested, Err: errors.New("cancellation requested")}
		}

		cited := make(models.FiscalNote, len(emitted.Note))
		visible := fiscalnote.VisibleNumbers(occurrences, emitted.Metadata.ProcessedNames)
		for _, key := range models.SectionKeys {
			body := emitted.Note[key]
			body = attribution.ResolveDocumentCitations(citations, body, docNames(envelope.Documents))
			body = attribution.ResolveMoneyCitations(citations, body, visible)
			cited[key] = body
		}

		if err := store.WriteJSON(bill.NotePath(emitted.Metadata.CheckpointDoc), cited); err != nil {
			return err
		}
		if err := store.WriteJSON(bill.NoteMetadataPath(emitted.Metadata.CheckpointDoc), emitted.Metadata); err != nil {
			return err
		}

		if havePrev {
			ledger := changes.Compute(prevCheckpoint, emitted.Metadata.CheckpointDoc, prevBody, cited)
			if err := appendChangeLedger(bill, ledger); err != nil {
				return err
			}
		}
		prevBody = cited
		prevCheckpoint = emitted.Metadata.CheckpointDoc
		havePrev = true

		o.upsertBillRecord(ctx, models.BillRecord{
			CanonicalID:      id.Canonical(),
			Chamber:          id.Chamber,
			Number:           id.Number,
			Year:             id.Year,
			LatestCheckpoint: emitted.Metadata.CheckpointDoc,
		}, []string{"latest_checkpoint"})
	}

	if err := store.WriteJSON(bill.DocumentMappingPath(), models.CitationMap{Docnum: citations.Docnum(), Numnum: citations.Numnum()}); err != nil {
		return err
	}

	return nil
}

// fetchDocuments walks the resolved Timeline in chronological order,
// downloading and extracting each document's text, recording fetch
// outcomes to the retrieval log, and checking cancellation between
// documents.
func (o *Orchestrator) fetchDocuments(ctx context.Context, bill *store.Bill, session *browser.Session,
	envelope *portal.Envelope, chronResult *chronology.Result, job *models.Job, log *zap.Logger) ([]models.Document, error) {

	byName := make(map[string]models.Document, len(envelope.Documents))
	for _, d := range envelope.Documents {
		byName[d.Name] = d
	}

	var (
		ordered []models.Document
		retrievalLog []map[string]any
	)

	for _, entry := range chronResult.Timeline {
		for _, name := range entry.Documents {
			if job.CancelReq {
				return nil, &JobError{Kind: KindCancelRequested, Err: errors.New("cancellation requested")}
			}
			doc, ok := byName[name]
			if !ok {
				continue
			}
			outcome := documents.Fetch(ctx, session, doc)
			doc.Text = outcome.Text
			doc.FetchedAt = time.Now().UTC().Format(time.RFC3339)
			ordered = append(ordered, doc)

			if outcome.Failed {
				log.Warn("document fetch failed", zap.String("document", doc.Name), zap.String("extractor", outcome.Extractor))
			}

			retrievalLog = append(retrievalLog, map[string]any{
				"name":      doc.Name,
				"extractor": outcome.Extractor,
				"failed":    outcome.Failed,
			})

			if err := os.WriteFile(bill.DocumentTextPath(doc.Name), []byte(doc.Text), 0o644); err != nil {
				return nil, fmt.Errorf("queue: write document text %s: %w", doc.Name, err)
			}
		}
	}

	if err := store.WriteJSON(bill.RetrievalLogPath(), retrievalLog); err != nil {
		return nil, err
	}
	return ordered, nil
}

func docNames(docs []models.Document) []string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	return names
}

func appendChangeLedger(bill *store.Bill, entry models.ChangeLedgerEntry) error {
	var existing []models.ChangeLedgerEntry
	if store.Exists(bill.ChangesPath()) {
		if err := store.ReadJSON(bill.ChangesPath(), &existing); err != nil {
			return err
		}
	}
	existing = append(existing, entry)
	return store.WriteJSON(bill.ChangesPath(), existing)
}

func classifyBrowserErr(err error) error {
	switch {
	case errors.Is(err, browser.ErrBotChallengeDetected):
		return &JobError{Kind: KindBotChallenge, Err: err}
	case errors.Is(err, browser.ErrNavigationTimeout):
		return &JobError{Kind: KindNavigationTimeout, Err: err}
	case errors.Is(err, browser.ErrDownloadTimeout):
		return &JobError{Kind: KindDownloadTimeout, Err: err}
	default:
		return &JobError{Kind: KindLLMTransportError, Err: err}
	}
}
