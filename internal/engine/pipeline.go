package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agri-assist/backend/internal/index"
	"github.com/agri-assist/backend/internal/prompt"
	"github.com/agri-assist/backend/internal/provider"
	"github.com/agri-assist/backend/internal/schema"
)

// Request stages, in order. Errored is reachable from any of them.
const (
	StageReceived  = "received"
	StageValidated = "validated"
	StageEnriched  = "enriched"
	StagePrompted  = "prompted"
	StageCompleted = "completed"
	StageParsed    = "parsed"
	StageResponded = "responded"
	StageErrored   = "errored"
)

// run tracks one request through the stages.
type run struct {
	log   *logrus.Entry
	start time.Time
	stage string
}

func (e *Engine) begin(ctx context.Context, domain string) *run {
	r := &run{
		log:   e.logger(ctx).WithField("domain", domain),
		start: time.Now(),
	}
	r.enter(StageReceived)
	return r
}

func (r *run) enter(stage string) {
	r.stage = stage
	r.log.WithField("stage", stage).Debug("Stage reached")
}

// fail records err against the current stage and returns it.
func (r *run) fail(err error) error {
	entry := r.log.WithFields(logrus.Fields{"stage": r.stage, "next": StageErrored}).WithError(err)
	if IsValidation(err) {
		entry.Info("Request rejected")
	} else {
		entry.Error("Request failed")
	}
	return err
}

func (r *run) done() {
	r.stage = StageResponded
	r.log.WithFields(logrus.Fields{
		"stage":    StageResponded,
		"duration": time.Since(r.start).String(),
	}).Info("Request completed")
}

// completion is one LLM exchange.
type completion struct {
	Template    prompt.Template
	Vars        map[string]any
	Chunks      []index.Chunk
	Format      string
	Temperature float64
	MaxTokens   int
	Model       string
	Image       *provider.Image
}

func (e *Engine) complete(ctx context.Context, r *run, c completion) (string, error) {
	pair, err := prompt.Assemble(c.Template, c.Vars, c.Chunks, c.Format)
	if err != nil {
		return "", r.fail(fmt.Errorf("failed to assemble prompt: %w", err))
	}
	r.enter(StagePrompted)

	raw, err := e.LLM.Complete(ctx, provider.Request{
		System:      pair.System,
		User:        pair.User,
		Image:       c.Image,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Model:       c.Model,
	})
	if err != nil {
		return "", r.fail(err)
	}
	r.enter(StageCompleted)
	return raw, nil
}

// generate runs a completion whose output must match s.
func generate[T any](ctx context.Context, e *Engine, r *run, c completion, s schema.Schema[T]) (T, error) {
	var zero T
	c.Format = s.Instructions()

	raw, err := e.complete(ctx, r, c)
	if err != nil {
		return zero, err
	}
	out, err := schema.Parse(raw, s)
	if err != nil {
		return zero, r.fail(err)
	}
	r.enter(StageParsed)
	return out, nil
}

func (e *Engine) retrieve(ctx context.Context, query string) ([]index.Chunk, error) {
	chunks, err := e.Index.Search(ctx, query, e.topK())
	if err != nil {
		return nil, fmt.Errorf("document retrieval failed: %w", err)
	}
	return chunks, nil
}

// jsonText renders enrichment data for a prompt.
func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
