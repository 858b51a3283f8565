package backward

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/agentstep/llms"
	"github.com/kadirpekel/agentstep/observability"
	"github.com/kadirpekel/agentstep/tokens"
)

const defaultConcurrency = 3

// Config tunes a Pipeline.
type Config struct {
	// Concurrency caps the fan-out across lists (BQA extraction) and
	// chapters (prompt synthesis). Defaults to 3.
	Concurrency int
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

// Pipeline runs the backward transformation: QA lists in, chapter structure
// plus OSPA rows out. One Pipeline is safe for concurrent Run calls; the
// prompt cache is shared across them.
type Pipeline struct {
	llm         llms.Client
	logger      *slog.Logger
	metrics     *observability.Metrics
	concurrency int
	cache       *promptCache
}

// run carries one Run invocation's mutable state, so concurrent runs on the
// same Pipeline never share a counter or operation log.
type run struct {
	*Pipeline

	counter *tokens.Counter

	mu    sync.Mutex
	opLog []string
}

// New wires a Pipeline around llmClient.
func New(llmClient llms.Client, cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		llm:         llmClient,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		concurrency: cfg.Concurrency,
		cache:       newPromptCache(),
	}
}

// Run executes the full backward pipeline over qaLists. existing, when
// non-nil, is the chapter structure new chapters are attached into; maxLevel
// bounds how deep the structure may grow. counter, when non-nil, accumulates
// token usage across every LLM call the run makes.
func (p *Pipeline) Run(ctx context.Context, qaLists []QAList, existing *ChapterStructure, maxLevel int, counter *tokens.Counter) (Result, error) {
	start := time.Now()
	r := &run{Pipeline: p, counter: counter}

	structure := existing
	if structure == nil {
		structure = NewChapterStructure()
	}

	// Stage (a): BQA extraction, fanned out per list, results kept in
	// input order.
	bqaLists := make([]BQAList, len(qaLists))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, list := range qaLists {
		g.Go(func() error {
			out, err := r.extractBQA(gctx, list)
			if err != nil {
				return err
			}
			bqaLists[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	total := 0
	for _, list := range bqaLists {
		total += len(list.Items)
	}
	r.appendLog(fmt.Sprintf("extracted %d bqa item(s) from %d list(s)", total, len(qaLists)))

	// Stage (b): one aggregation call over the whole corpus.
	chapters, err := r.aggregateChapters(ctx, bqaLists)
	if err != nil {
		return Result{}, err
	}
	r.appendLog(fmt.Sprintf("aggregated into %d chapter(s)", len(chapters)))

	nodes, err := r.placeChapters(ctx, structure, chapters, maxLevel)
	if err != nil {
		return Result{}, err
	}

	// Stage (c): per-chapter prompt synthesis, fanned out.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, node := range nodes {
		g.Go(func() error {
			prompt, err := r.synthesizePrompt(gctx, node, chapters[i].Items)
			if err != nil {
				return err
			}
			node.Prompt = prompt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// Stage (d): OSPA emission, chapter order then item order.
	var ospa []OSPA
	for i, node := range nodes {
		state := structure.Path(node.ID)
		for _, item := range chapters[i].Items {
			ospa = append(ospa, OSPA{
				Observation: item.Question,
				State:       state,
				Prompt:      node.Prompt,
				Answer:      item.Answer,
			})
		}
	}
	r.appendLog(fmt.Sprintf("emitted %d ospa row(s)", len(ospa)))
	p.metrics.ObserveBackwardRun(time.Since(start), len(ospa))

	r.mu.Lock()
	opLog := r.opLog
	r.mu.Unlock()
	return Result{ChapterStructure: structure, OSPAList: ospa, OperationLog: opLog}, nil
}

// addCall forwards one completed LLM call's usage to the run's counter and
// the process metrics.
func (r *run) addCall(usage llms.TokenUsage) {
	if r.counter != nil {
		r.counter.AddCall(usage.InputTokens, usage.OutputTokens)
	}
	r.metrics.RecordLLMCall("backward", usage.InputTokens, usage.OutputTokens)
}

func (r *run) appendLog(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opLog = append(r.opLog, entry)
}
