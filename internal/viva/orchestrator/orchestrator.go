// Package orchestrator sequences the turns of a viva session: transcription,
// filler analysis, prompt composition, generation and committing the results
// back into the session store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keshav2232/viva/internal/logging"
	"github.com/keshav2232/viva/internal/viva/analyzer"
	"github.com/keshav2232/viva/internal/viva/domain"
	"github.com/keshav2232/viva/internal/viva/prompt"
	"github.com/keshav2232/viva/internal/viva/session"
	"github.com/keshav2232/viva/pkg/llm"
)

const (
	DefaultGenerateTimeout   = 60 * time.Second
	DefaultTranscribeTimeout = 60 * time.Second
	defaultArchiveTimeout    = 10 * time.Second
)

// StartResult is returned by Start and Open. SessionID is set even when the
// opening generation failed, so the caller can retry with Open.
type StartResult struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question"`
}

// AnswerResult is the outcome of one candidate turn.
type AnswerResult struct {
	SessionID     string                `json:"sessionId"`
	Transcription string                `json:"transcription"`
	Reply         string                `json:"reply"`
	Analysis      domain.AnalysisResult `json:"analysis"`
	Tone          domain.Tone           `json:"tone"`
}

// FinishResult carries the grading and the final statistics of a session.
type FinishResult struct {
	SessionID   string             `json:"sessionId"`
	Summary     domain.Summary     `json:"summary"`
	FillerStats domain.FillerStats `json:"fillerStats"`
	Report      *domain.Report     `json:"-"`
}

// Orchestrator drives sessions through Start, Answer and Finish.
type Orchestrator struct {
	store       *session.Store
	generator   llm.Generator
	transcriber llm.Transcriber
	composer    *prompt.Composer
	archive     domain.ReportArchive
	log         *logging.Logger
	now         func() time.Time

	generateTimeout   time.Duration
	transcribeTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithComposer replaces the default prompt composer.
func WithComposer(c *prompt.Composer) Option {
	return func(o *Orchestrator) { o.composer = c }
}

// WithArchive stores a report of every finished session.
func WithArchive(a domain.ReportArchive) Option {
	return func(o *Orchestrator) { o.archive = a }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithGenerateTimeout bounds every generator call. Zero disables the bound.
func WithGenerateTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.generateTimeout = d }
}

// WithTranscribeTimeout bounds every transcriber call. Zero disables the bound.
func WithTranscribeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.transcribeTimeout = d }
}

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator over a session store and its collaborators.
func New(store *session.Store, gen llm.Generator, tr llm.Transcriber, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:             store,
		generator:         gen,
		transcriber:       tr,
		composer:          prompt.NewComposer(),
		log:               logging.New("orchestrator"),
		now:               time.Now,
		generateTimeout:   DefaultGenerateTimeout,
		transcribeTimeout: DefaultTranscribeTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session returns a snapshot of a live session.
func (o *Orchestrator) Session(id string) (domain.Session, error) {
	s, ok := o.store.Get(id)
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// Start creates a session and asks the generator for the first question.
// On generation failure the session stays registered with an empty
// transcript and its id is still returned.
func (o *Orchestrator) Start(ctx context.Context, cfg domain.SessionConfig) (StartResult, error) {
	if err := cfg.Validate(); err != nil {
		return StartResult{}, err
	}
	sess := o.store.Create(cfg)
	o.log.WithSession(sess.ID).Info("session_created", map[string]interface{}{
		"topic":      sess.Topic,
		"difficulty": sess.Difficulty,
		"persona":    sess.Persona,
	})
	return o.open(ctx, sess)
}

// Open retries the opening exchange of a session whose Start failed.
func (o *Orchestrator) Open(ctx context.Context, id string) (StartResult, error) {
	sess, err := o.Session(id)
	if err != nil {
		return StartResult{}, err
	}
	if len(sess.Transcript) > 0 {
		return StartResult{SessionID: id}, fmt.Errorf("%w: %s", domain.ErrAlreadyStarted, id)
	}
	return o.open(ctx, sess)
}

func (o *Orchestrator) open(ctx context.Context, sess domain.Session) (StartResult, error) {
	res := StartResult{SessionID: sess.ID}

	msgs := o.composer.Opening(sess)
	reply, err := o.generate(ctx, sess.ID, "opening", msgs)
	if err != nil {
		return res, err
	}

	_, err = o.store.AppendTurnAt(sess.ID, 0,
		domain.NewTurn(domain.RoleSystem, msgs[0].Content),
		domain.NewTurn(domain.RoleCandidate, msgs[1].Content),
		domain.NewTurn(domain.RoleExaminer, reply),
	)
	switch {
	case errors.Is(err, session.ErrTranscriptMoved):
		return res, fmt.Errorf("%w: %s", domain.ErrAlreadyStarted, sess.ID)
	case err != nil:
		return res, fmt.Errorf("%w: %s", err, sess.ID)
	}

	res.Question = reply
	return res, nil
}

// Answer runs one candidate turn. A transcription failure commits nothing.
// A generation failure keeps the committed candidate turn and its stats; the
// reply can then be requested again with Regenerate.
func (o *Orchestrator) Answer(ctx context.Context, id string, audio []byte) (AnswerResult, error) {
	res := AnswerResult{SessionID: id}
	if _, err := o.Session(id); err != nil {
		return res, err
	}
	log := o.log.WithSession(id)

	tr, err := o.transcribe(ctx, audio)
	if err != nil {
		log.Warn("transcription_failed", map[string]interface{}{"bytes": len(audio)}, err)
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	text := strings.TrimSpace(tr.Text)
	analysis := analyzer.Analyze(text)
	tone := domain.ParseTone(tr.Tone)
	res.Transcription = text
	res.Analysis = analysis
	res.Tone = tone

	turn := domain.NewTurn(domain.RoleCandidate, text)
	turn.Tone = tone
	turn.Fillers = analysis.FillerCount

	snap, ok := o.store.Record(id, analysis, turn)
	if !ok {
		return res, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	log.Info("answer_recorded", map[string]interface{}{
		"words":   analysis.TotalWords,
		"fillers": analysis.FillerCount,
		"tone":    tone,
	})

	reply, err := o.generate(ctx, id, "turn", o.composer.Turn(snap, tone, analysis.FillerCount))
	if err != nil {
		return res, err
	}
	if _, ok := o.store.AppendTurn(id, domain.NewTurn(domain.RoleExaminer, reply)); !ok {
		return res, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	res.Reply = reply
	return res, nil
}

// Regenerate requests the examiner reply for a candidate turn whose
// generation failed.
func (o *Orchestrator) Regenerate(ctx context.Context, id string) (AnswerResult, error) {
	res := AnswerResult{SessionID: id}
	snap, err := o.Session(id)
	if err != nil {
		return res, err
	}
	last, ok := snap.LastTurn()
	if !ok || last.Role != domain.RoleCandidate {
		return res, fmt.Errorf("%w: %s", domain.ErrNothingPending, id)
	}

	res.Transcription = last.Content
	res.Analysis = analyzer.Analyze(last.Content)
	res.Tone = last.Tone

	reply, err := o.generate(ctx, id, "turn", o.composer.Turn(snap, last.Tone, last.Fillers))
	if err != nil {
		return res, err
	}

	_, err = o.store.AppendTurnAt(id, len(snap.Transcript), domain.NewTurn(domain.RoleExaminer, reply))
	switch {
	case errors.Is(err, session.ErrTranscriptMoved):
		return res, fmt.Errorf("%w: %s", domain.ErrNothingPending, id)
	case err != nil:
		return res, fmt.Errorf("%w: %s", err, id)
	}

	res.Reply = reply
	return res, nil
}

// Finish grades the session, destroys it and returns the summary together
// with the final filler statistics. A reply that cannot be parsed yields a
// degraded summary rather than an error. When generation fails the session is
// kept so Finish can be retried.
func (o *Orchestrator) Finish(ctx context.Context, id string) (FinishResult, error) {
	res := FinishResult{SessionID: id}
	snap, err := o.Session(id)
	if err != nil {
		return res, err
	}
	log := o.log.WithSession(id)

	reply, err := o.generate(ctx, id, "summary", o.composer.Summary(snap))
	if err != nil {
		return res, err
	}
	summary, perr := prompt.ParseSummary(reply)
	if perr != nil {
		log.Warn("summary_degraded", map[string]interface{}{"reply_len": len(reply)}, perr)
	}

	final, ok := o.store.Destroy(id)
	if !ok {
		return res, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	res.Summary = summary
	res.FillerStats = final.FillerStats
	res.Report = domain.NewReport(final, summary, o.now())
	log.Info("session_finished", map[string]interface{}{
		"turns":    len(final.Transcript),
		"fillers":  final.FillerStats.FillerCount,
		"degraded": summary.Degraded(),
	})

	o.saveReport(ctx, res.Report)
	return res, nil
}

func (o *Orchestrator) saveReport(ctx context.Context, r *domain.Report) {
	if o.archive == nil {
		return
	}
	// The session is already gone; a caller hanging up must not lose the report.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultArchiveTimeout)
	defer cancel()
	if err := o.archive.SaveReport(actx, r); err != nil {
		o.log.WithSession(r.SessionID).Warn("report_archive_failed", nil, err)
	}
}

func (o *Orchestrator) generate(ctx context.Context, id, stage string, msgs []llm.Message) (string, error) {
	if o.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.generateTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := o.generator.Generate(ctx, msgs)
	extra := map[string]interface{}{"stage": stage, "messages": len(msgs), "generator": o.generator.ID()}
	if err != nil {
		o.log.WithSession(id).Warn("generation_failed", extra, err)
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailure, err)
	}
	if strings.TrimSpace(reply) == "" {
		o.log.WithSession(id).Warn("generation_empty", extra, nil)
		return "", fmt.Errorf("%w: empty reply", domain.ErrGenerationFailure)
	}
	o.log.WithSession(id).TimedEvent("generation_done", start, extra)
	return strings.TrimSpace(reply), nil
}

func (o *Orchestrator) transcribe(ctx context.Context, audio []byte) (llm.Transcription, error) {
	if len(audio) == 0 {
		return llm.Transcription{}, fmt.Errorf("%w: no audio", domain.ErrTranscriptionFailure)
	}
	if o.transcribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.transcribeTimeout)
		defer cancel()
	}

	tr, err := o.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return llm.Transcription{}, fmt.Errorf("%w: %w", domain.ErrTranscriptionFailure, err)
	}
	if strings.TrimSpace(tr.Text) == "" {
		return llm.Transcription{}, fmt.Errorf("%w: empty transcription", domain.ErrTranscriptionFailure)
	}
	return tr, nil
}
