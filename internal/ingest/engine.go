package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"candyshop/internal/artifacts"
	"candyshop/internal/catalog"
	"candyshop/internal/config"
	"candyshop/internal/fileutil"
	"candyshop/internal/ledger"
	"candyshop/internal/logging"
	"candyshop/internal/media/midi"
	"candyshop/internal/media/preview"
	"candyshop/internal/notifications"
	"candyshop/internal/preflight"
	"candyshop/internal/services"
	"candyshop/internal/source"
	"candyshop/internal/submission"
	"candyshop/internal/textutil"
)

// Source supplies pull requests and attachment bytes.
type Source interface {
	Fetch(ctx context.Context, number int) (*source.PullRequest, error)
	Download(ctx context.Context, att submission.Attachment) ([]byte, error)
}

// Ledger records ingestion attempts.
type Ledger interface {
	Record(ctx context.Context, rec ledger.Record) (ledger.Record, error)
	LastIngested(ctx context.Context, pr int) (ledger.Record, bool, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Options adjusts a single Ingest call.
type Options struct {
	// Force ingests a pull request the ledger already recorded as ingested.
	Force bool
}

// Result describes a successful ingestion.
type Result struct {
	PullRequest int
	RequestID   string
	Entry       catalog.Entry
	Index       int
	Revision    int
	Warnings    []services.Warning
}

// Engine runs the ingestion pipeline.
type Engine struct {
	cfg      *config.Config
	store    *catalog.Store
	source   Source
	notifier notifications.Service
	ledger   Ledger
	logger   *slog.Logger
	now      Clock

	midiInfo        func([]byte) (midi.Info, error)
	previewDuration func([]byte, string) (float64, error)
	freeSpace       func(path string, minMiB uint64) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the notification sink.
func WithNotifier(n notifications.Service) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLedger sets the ingestion ledger. Without one, duplicate detection and
// bookkeeping are skipped.
func WithLedger(l Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the clock used for entry dates.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithMIDIAnalyzer overrides MIDI analysis.
func WithMIDIAnalyzer(fn func([]byte) (midi.Info, error)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.midiInfo = fn
		}
	}
}

// WithPreviewProbe overrides preview duration probing.
func WithPreviewProbe(fn func([]byte, string) (float64, error)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.previewDuration = fn
		}
	}
}

// WithFreeSpaceCheck overrides the disk space preflight.
func WithFreeSpaceCheck(fn func(path string, minMiB uint64) error) Option {
	return func(e *Engine) {
		if fn != nil {
			e.freeSpace = fn
		}
	}
}

// NewEngine builds an engine over the catalog store and pull request source.
func NewEngine(cfg *config.Config, store *catalog.Store, src Source, opts ...Option) *Engine {
	e := &Engine{
		cfg:             cfg,
		store:           store,
		source:          src,
		notifier:        notifications.NewService(nil),
		logger:          logging.NewNop(),
		now:             time.Now,
		midiInfo:        midi.Analyze,
		previewDuration: preview.Duration,
		freeSpace:       preflight.EnsureFreeSpace,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "ingest")
	return e
}

// fetched holds everything gathered before the catalog lock is taken.
type fetched struct {
	pr         *source.PullRequest
	sub        *submission.Submission
	binary     []byte
	preview    []byte
	previewExt string
	midi       []byte
}

// run carries per-ingestion state.
type run struct {
	ctx      context.Context
	logger   *slog.Logger
	warnings []services.Warning
}

func (r *run) warn(stage, code, message string, err error, hint string) {
	w := services.NewWarning(stage, code, message, err)
	r.warnings = append(r.warnings, w)
	attrs := []logging.Attr{
		logging.Stage(stage),
		logging.Hint(hint),
		logging.Impact("entry recorded with reduced metadata"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(r.logger, message, code, attrs...)
}

// Ingest runs the pipeline for pull request number.
func (e *Engine) Ingest(ctx context.Context, number int, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID := uuid.NewString()
	ctx = services.WithRequestID(services.WithPullRequest(ctx, number), requestID)
	r := &run{ctx: ctx, logger: logging.WithContext(ctx, e.logger)}
	r.logger.Info("ingest started", logging.String(logging.FieldEventType, "ingest_started"))

	if !opts.Force {
		if err := e.checkLedger(r, number); err != nil {
			return nil, err
		}
	}

	in, err := e.gather(r, number)
	if err != nil {
		e.finishFailed(r, number, requestID, in, err)
		return nil, err
	}

	result, err := e.commit(r, in)
	if err != nil {
		e.finishFailed(r, number, requestID, in, err)
		return nil, err
	}
	result.PullRequest = number
	result.RequestID = requestID

	e.notifyAdded(r, in, result)
	e.recordLedger(r, ledger.Record{
		PullNumber: number,
		Outcome:    ledger.OutcomeIngested,
		Game:       result.Entry.Game,
		Song:       result.Entry.Song,
		Revision:   result.Revision,
		EntryIndex: result.Index,
		RequestID:  requestID,
		Warnings:   len(r.warnings),
	})
	result.Warnings = r.warnings

	r.logger.Info("ingest completed",
		logging.String("game", result.Entry.Game),
		logging.String("song", result.Entry.Song),
		logging.Int("index", result.Index),
		logging.Int("revision", result.Revision),
		logging.Int("warnings", len(result.Warnings)),
		logging.String(logging.FieldEventType, "ingest_completed"))
	return result, nil
}

func (e *Engine) checkLedger(r *run, number int) error {
	if e.ledger == nil {
		return nil
	}
	prev, ok, err := e.ledger.LastIngested(r.ctx, number)
	if err != nil {
		r.warn("ledger", "ledger_unavailable", "could not check ingestion history", err,
			"inspect the ledger database")
		return nil
	}
	if ok {
		return services.Wrap(services.ErrAlreadyIngested, "ingest", "ledger",
			fmt.Sprintf("pull request %d is already catalog entry %d (use --force to add a new revision)", number, prev.EntryIndex), nil)
	}
	return nil
}

// gather fetches and validates the submission. Nothing is written to disk.
func (e *Engine) gather(r *run, number int) (*fetched, error) {
	pr, err := e.source.Fetch(r.ctx, number)
	if err != nil {
		return nil, err
	}
	in := &fetched{pr: pr}

	if err := submission.CheckLabels(pr.Labels, e.cfg.Ingest.SkipLabels); err != nil {
		return in, err
	}
	sub, err := submission.Parse(pr.Body, pr.Attachments, e.cfg.Ingest.Sentinel)
	if err != nil {
		return in, err
	}
	in.sub = sub

	if missing := sub.Missing(); len(missing) > 0 {
		return in, services.Wrap(services.ErrValidation, "parse", "fields",
			fmt.Sprintf("%s is empty", strings.Join(missing, " and ")), nil)
	}
	if textutil.ContainsForbidden(sub.Game()) || textutil.ContainsForbidden(sub.Song()) {
		r.warn("validate", "name_filtered",
			fmt.Sprintf("artifact paths drop unsafe characters from %q / %q", sub.Game(), sub.Song()), nil,
			"none; the catalog entry keeps the submitted names")
	}
	if e.cfg.Ingest.RequireBinary && sub.Binary == nil {
		return in, services.Wrap(services.ErrMissingRequiredArtifact, "validate", "binary", "a .bin file", nil)
	}
	if e.cfg.Ingest.RequirePreview && sub.Preview == nil {
		return in, services.Wrap(services.ErrMissingRequiredArtifact, "validate", "preview", "a .wav or .mp3 preview", nil)
	}

	if sub.Binary != nil {
		if in.binary, err = e.source.Download(r.ctx, *sub.Binary); err != nil {
			return in, err
		}
	}
	if sub.Preview != nil {
		data, err := e.source.Download(r.ctx, *sub.Preview)
		switch {
		case err == nil:
			in.preview, in.previewExt = data, sub.Preview.Ext()
		case e.cfg.Ingest.RequirePreview:
			return in, err
		default:
			r.warn("fetch", "preview_fetch_failed", "preview could not be downloaded; entry has no Audio", err,
				"re-run ingest with --force once the attachment is reachable")
		}
	}
	if sub.MIDI != nil {
		data, err := e.source.Download(r.ctx, *sub.MIDI)
		if err != nil {
			r.warn("fetch", "midi_fetch_failed", "MIDI could not be downloaded; Duration derived elsewhere", err,
				"check the MIDI attachment link")
		} else {
			in.midi = data
		}
	}
	return in, nil
}

// commit performs every catalog-side step under the advisory lock.
func (e *Engine) commit(r *run, in *fetched) (*Result, error) {
	if e.cfg.Ingest.MinFreeMiB > 0 && (in.binary != nil || in.preview != nil) {
		if err := e.freeSpace(e.cfg.Paths.RepoRoot, uint64(e.cfg.Ingest.MinFreeMiB)); err != nil {
			return nil, err
		}
	}

	layout := artifacts.Layout{
		Root:        e.cfg.Paths.RepoRoot,
		BinariesDir: e.cfg.Paths.BinariesDir,
		PreviewsDir: e.cfg.Paths.PreviewsDir,
	}
	game := strings.TrimSpace(in.sub.Game())
	song := strings.TrimSpace(in.sub.Song())

	var result *Result
	err := e.store.WithLock(r.ctx, func() error {
		cat, loadWarnings, err := e.store.Load()
		if err != nil {
			return err
		}
		r.warnings = append(r.warnings, loadWarnings...)

		prior := catalog.CountPriorRevisions(cat, game, song)
		suffix := catalog.RevisionSuffix(prior)

		if err := e.checkCollisions(r, cat, layout, in, game, song, suffix); err != nil {
			return err
		}

		placer := artifacts.NewPlacer(layout, e.logger)
		binaryRel, err := placer.Place(artifacts.KindBinary, in.binary, game, song, suffix, artifacts.BinaryExt)
		if err != nil {
			placer.Rollback()
			return err
		}
		previewRel, err := placer.Place(artifacts.KindPreview, in.preview, game, song, suffix, in.previewExt)
		if err != nil {
			placer.Rollback()
			return err
		}

		entry := e.buildEntry(r, in, game, song, binaryRel, previewRel)
		index := cat.Append(entry)
		if err := e.store.Save(r.ctx, cat); err != nil {
			placer.Rollback()
			return err
		}
		result = &Result{Entry: entry, Index: index, Revision: prior}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkCollisions guards against two different names filtering to the same
// artifact path. A file nothing references is left over from an interrupted
// run and is overwritten with a warning; a referenced file is never replaced.
func (e *Engine) checkCollisions(r *run, cat *catalog.Catalog, layout artifacts.Layout, in *fetched, game, song, suffix string) error {
	type planned struct {
		kind artifacts.Kind
		data []byte
		ext  string
	}
	for _, p := range []planned{
		{artifacts.KindBinary, in.binary, artifacts.BinaryExt},
		{artifacts.KindPreview, in.preview, in.previewExt},
	} {
		if p.data == nil {
			continue
		}
		rel := layout.RelPath(p.kind, game, song, suffix, p.ext)
		if !fileutil.Exists(layout.Abs(rel)) {
			continue
		}
		if e.referenced(cat, rel) {
			return services.Wrap(services.ErrArtifactWrite, "place", string(p.kind),
				fmt.Sprintf("%s already belongs to another entry", rel), nil)
		}
		r.warn("place", "artifact_overwritten", fmt.Sprintf("replacing unreferenced file %s", rel), nil,
			"none; the file was left by an interrupted run")
	}
	return nil
}

func (e *Engine) referenced(cat *catalog.Catalog, rel string) bool {
	if cat.ReferencesBinary(rel) {
		return true
	}
	for _, entry := range cat.Entries() {
		if audio, ok := artifacts.RelFromURL(e.cfg.Repository.RawBaseURL, entry.Audio); ok && audio == rel {
			return true
		}
	}
	return false
}

func (e *Engine) buildEntry(r *run, in *fetched, game, song, binaryRel, previewRel string) catalog.Entry {
	sub := in.sub
	entry := catalog.Entry{
		Game:       game,
		Song:       song,
		Category:   sub.Category(),
		Composers:  sub.String(submission.FieldComposers),
		Converters: sub.String(submission.FieldConverters),
		Binary:     binaryRel,
		Tags:       sub.Tags(),
		Verified:   true,
		Date:       e.now().UTC().Format(time.RFC3339),
	}
	entry.AdditionalNotes, entry.UpdateNotes = sub.Notes()
	if previewRel != "" {
		entry.Audio = artifacts.PublicURL(e.cfg.Repository.RawBaseURL, previewRel)
	}
	if tracks, ok := sub.Tracks(); ok {
		entry.Tracks = &tracks
	} else if raw := sub.String(submission.FieldTracks); raw != "" {
		r.warn("parse", "tracks_not_numeric", fmt.Sprintf("Tracks value %q is not a whole number", raw), nil,
			"correct the Tracks line in the description")
	}
	var info *midi.Info
	if in.midi != nil {
		parsed, err := e.midiInfo(in.midi)
		if err != nil {
			r.warn("derive", "midi_unreadable", "the MIDI file could not be parsed", err,
				"check that the attachment is a standard MIDI file")
		} else {
			info = &parsed
		}
	}
	if d, ok := e.duration(r, in, info); ok {
		entry.Duration = &d
	}
	if entry.Tracks == nil && info != nil && info.Tracks > 0 {
		tracks := info.Tracks
		entry.Tracks = &tracks
	}
	return entry
}

// duration picks the first available source: the MIDI tempo map, the value
// the submitter typed, then the placed preview audio.
func (e *Engine) duration(r *run, in *fetched, info *midi.Info) (float64, bool) {
	if info != nil && info.Duration > 0 {
		return info.Duration, true
	}
	if d, ok := in.sub.Duration(); ok {
		return d, true
	}
	if in.preview != nil && e.cfg.Ingest.DerivePreviewDuration {
		d, err := e.previewDuration(in.preview, in.previewExt)
		if err == nil && d > 0 {
			return d, true
		}
		r.warn("derive", "preview_duration_failed", "Duration could not be read from the preview audio", err,
			"add a Duration line to the description")
	}
	return 0, false
}

func (e *Engine) notifyAdded(r *run, in *fetched, result *Result) {
	entry := result.Entry
	payload := notifications.Payload{
		"game":       entry.Game,
		"song":       entry.Song,
		"category":   entry.Category,
		"composers":  entry.Composers,
		"converters": entry.Converters,
		"tags":       entry.Tags,
		"revision":   result.Revision,
		"audio_url":  entry.Audio,
		"pr_url":     in.pr.URL,
	}
	if entry.Duration != nil {
		payload["duration"] = *entry.Duration
	}
	if in.preview != nil && in.sub.Preview != nil {
		payload["preview"] = in.preview
		payload["preview_name"] = in.sub.Preview.Name
	}
	if err := e.notifier.Publish(r.ctx, notifications.EventEntryAdded, payload); err != nil {
		r.warn("notify", "notification_failed", "chat notification was not delivered", err,
			"run candyshop test-notify to check the webhook")
	}
}

// finishFailed records a failed or rejected attempt and tells the chat sink
// about rejections a submitter can fix.
func (e *Engine) finishFailed(r *run, number int, requestID string, in *fetched, err error) {
	outcome := ledger.OutcomeFailed
	if services.IsRejection(err) {
		outcome = ledger.OutcomeRejected
	}
	rec := ledger.Record{
		PullNumber: number,
		Outcome:    outcome,
		EntryIndex: -1,
		RequestID:  requestID,
		Message:    services.UserMessage(err),
	}
	if in != nil && in.sub != nil {
		rec.Game, rec.Song = in.sub.Game(), in.sub.Song()
	}
	e.recordLedger(r, rec)

	if errors.Is(err, services.ErrMissingRequiredArtifact) || errors.Is(err, services.ErrValidation) {
		payload := notifications.Payload{"pr": number, "reason": services.UserMessage(err)}
		if in != nil && in.pr != nil {
			payload["pr_url"] = in.pr.URL
		}
		if notifyErr := e.notifier.Publish(r.ctx, notifications.EventSubmissionRejected, payload); notifyErr != nil {
			r.logger.Debug("rejection notification failed", logging.Error(notifyErr))
		}
	}

	level := slog.LevelError
	if services.IsRejection(err) {
		level = slog.LevelInfo
	}
	r.logger.Log(r.ctx, level, "ingest stopped",
		logging.String("outcome", string(outcome)),
		logging.Error(err),
		logging.String(logging.FieldEventType, "ingest_stopped"))
}

func (e *Engine) recordLedger(r *run, rec ledger.Record) {
	if e.ledger == nil {
		return
	}
	if _, err := e.ledger.Record(r.ctx, rec); err != nil {
		r.warn("ledger", "ledger_write_failed", "ingestion was not recorded in the ledger", err,
			"inspect the ledger database; the catalog itself is up to date")
	}
}
