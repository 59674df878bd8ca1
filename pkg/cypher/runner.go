// Package cypher - the Runner facade.
package cypher

import (
	"context"

	"github.com/orneryd/cypherframe/pkg/graph"
)

// Runner wires the pipeline together: cached parser → logical planner →
// physical planner → optimizer → execution. One Runner serves one graph
// model; each Run call produces an independent lazy Result.
//
// The evaluator and frame operator are stateless and shared by every query
// the runner executes. The parser cache is the runner's only mutable
// shared state and is internally synchronized, so a Runner is safe to use
// from concurrent goroutines as long as the graph model is.
//
// Example:
//
//	g := graph.NewMemoryGraph()
//	runner := cypher.NewRunner(g)
//
//	result, err := runner.Run(ctx,
//		"MATCH (a)-[r:KNOWS]->(b) RETURN a, r, b", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	result.Show(os.Stdout, 10)
type Runner struct {
	model     graph.GraphModel
	parser    *CachedParser
	evaluator *Evaluator
	operator  *FrameOperator
	logical   *LogicalPlanner
	physical  *PhysicalPlanner
	optimizer *Optimizer
}

// RunnerOption customizes a Runner.
type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	parseCacheSize  int
	optimizerPasses int
}

// WithParseCacheSize bounds the parse cache (default
// DefaultParseCacheSize).
func WithParseCacheSize(n int) RunnerOption {
	return func(c *runnerConfig) { c.parseCacheSize = n }
}

// WithOptimizerPasses bounds the optimizer fixpoint loop (default
// DefaultOptimizerPasses).
func WithOptimizerPasses(n int) RunnerOption {
	return func(c *runnerConfig) { c.optimizerPasses = n }
}

// NewRunner creates a runner over the given graph model.
func NewRunner(model graph.GraphModel, opts ...RunnerOption) *Runner {
	cfg := runnerConfig{
		parseCacheSize:  DefaultParseCacheSize,
		optimizerPasses: DefaultOptimizerPasses,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{
		model:     model,
		parser:    NewCachedParser(cfg.parseCacheSize),
		evaluator: NewEvaluator(),
		operator:  NewFrameOperator(),
		logical:   NewLogicalPlanner(),
		physical:  NewPhysicalPlanner(),
		optimizer: NewOptimizer(cfg.optimizerPasses),
	}
}

// Compile parses the query (through the cache) without planning or
// executing it. The returned ParsedQuery is immutable and shared between
// callers; cache hits return the same handle.
func (r *Runner) Compile(query string) (*ParsedQuery, error) {
	return r.parser.Parse(query)
}

// Run compiles, plans, optimizes, and binds the query, returning a lazy
// Result. Static errors (parsing, semantic, schema, plan) surface here;
// runtime errors surface from the Result's record iterator.
//
// The context is observed at scan boundaries while the result is drained,
// so cancelling it aborts a long iteration.
func (r *Runner) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	parsed, err := r.parser.Parse(query)
	if err != nil {
		return nil, err
	}

	lpt, err := r.logical.Plan(parsed)
	if err != nil {
		return nil, err
	}

	ppt, err := r.physical.Plan(lpt)
	if err != nil {
		return nil, err
	}
	ppt = r.optimizer.Optimize(ppt)

	normParams := make(map[string]any, len(params))
	for k, v := range params {
		normParams[k] = NormalizeValue(v)
	}
	execCtx := &ExecContext{
		Ctx:       ctx,
		Model:     r.model,
		Evaluator: r.evaluator,
		Operator:  r.operator,
		Params:    normParams,
		Residual:  parsed.Residual,
	}
	frame, err := ppt.Execute(execCtx)
	if err != nil {
		return nil, err
	}

	return &Result{
		frame:  frame,
		parsed: parsed,
		lpt:    lpt,
		ppt:    ppt,
	}, nil
}

// ParseCacheStats exposes the parse cache's hit and miss counters.
func (r *Runner) ParseCacheStats() (hits, misses uint64) {
	return r.parser.Stats()
}
