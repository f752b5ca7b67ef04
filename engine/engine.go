// Package engine implements the Graph Engine (spec §4.H): the five-pass
// planner and executor that turns a graph.Graph of Blank nodes into a
// fully-executed one. The five-pass structure (Estimate,
// Pre-optimize-flatten, Optimize, Post-optimize-flatten, Execute) mirrors
// imageflow_core's flow/execution_engine.rs; the pass-cap/retry-free
// execution loop is adapted from the teacher's core.Processor worker loop,
// which likewise drives a fixed pipeline of named stages over one job at a
// time rather than looping until some open-ended convergence condition.
package engine

import (
	"fmt"
	"time"

	"github.com/imazen-go/imageflow/config"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/nodes"
)

// Hook observes node execution (Pass 5 only; the estimate/flatten/optimize
// passes run too often per graph build to be worth instrumenting at this
// granularity). It generalizes the teacher's pipeline BeforeStep/AfterStep
// hook pair from a linear step list to a graph node.
type Hook interface {
	BeforeNode(env nodes.ExecEnv, typeName string, id graph.NodeID)
	AfterNode(env nodes.ExecEnv, typeName string, id graph.NodeID, d time.Duration, err error)
}

// Engine drives one graph.Graph through all five planning/execution passes.
type Engine struct {
	cfg   config.Config
	hooks []Hook
}

// New returns an Engine configured per cfg.
func New(cfg config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// WithHooks attaches observers that fire around every Execute call in Pass
// 5 (spec §4.H), returning e for chaining.
func (e *Engine) WithHooks(hooks ...Hook) *Engine {
	e.hooks = append(e.hooks, hooks...)
	return e
}

func defOf(g *graph.Graph, id graph.NodeID) (*nodes.Def, error) {
	n := g.Node(id)
	if n == nil {
		return nil, ferr.New(ferr.InvalidState, "engine", fmt.Errorf("unknown node %s", id))
	}
	d, ok := nodes.Get(n.TypeName)
	if !ok {
		return nil, ferr.New(ferr.NodeParamsMismatch, "engine", fmt.Errorf("unregistered node type %q", n.TypeName))
	}
	return d, nil
}

// checkCancelled returns OperationCancelled if env's context has been
// cancelled, the engine's single cooperative-cancellation check point
// (spec §4.H, polled between every node rather than mid-node).
func checkCancelled(env nodes.ExecEnv) error {
	select {
	case <-env.Context().Done():
		return ferr.New(ferr.OperationCancelled, "engine", env.Context().Err())
	default:
		return nil
	}
}

// Run executes every pass over g in order, returning the first error
// encountered. On success every node's Stage is Done and every node that
// produces a frame has a populated Result.
func (e *Engine) Run(env nodes.ExecEnv, g *graph.Graph) error {
	if err := e.estimatePass(env, g); err != nil {
		return err
	}
	if err := e.flattenLoop(env, g, passPreOptimize); err != nil {
		return err
	}
	if err := e.optimizePass(env, g); err != nil {
		return err
	}
	if err := e.flattenLoop(env, g, passPostOptimize); err != nil {
		return err
	}
	return e.executePass(env, g)
}

// estimatePass runs each node's Estimate function in topological order, so
// every node sees its parents' already-computed FrameEstimate (spec §4.H
// Pass 1).
func (e *Engine) estimatePass(env nodes.ExecEnv, g *graph.Graph) error {
	order, err := g.TopoOrder()
	if err != nil {
		return err
	}
	for _, id := range order {
		if err := checkCancelled(env); err != nil {
			return err
		}
		d, err := defOf(g, id)
		if err != nil {
			return err
		}
		if d.Estimate != nil {
			if err := d.Estimate(env, g, id); err != nil {
				return err
			}
		}
		n := g.Node(id)
		if n.Stage < graph.InputDimsKnown {
			n.Stage = graph.InputDimsKnown
		}
	}
	return nil
}

type flattenPhase int

const (
	passPreOptimize flattenPhase = iota
	passPostOptimize
)

// flattenLoop repeatedly expands composite nodes via FlattenPre/FlattenPost,
// re-running Estimate after each round since newly-added nodes need their
// own estimates (spec §4.H passes 2 and 4). A round counts as a change
// whenever it called at least one flatten function, so the loop ends after
// the first round in which no remaining node has a flatten function for
// this phase, or after config.MaxPlanningPasses rounds (6 when unset). A
// node whose flatten function leaves it in the graph is flattened again
// every round.
func (e *Engine) flattenLoop(env nodes.ExecEnv, g *graph.Graph, phase flattenPhase) error {
	passCap := e.cfg.MaxPlanningPasses
	if passCap <= 0 {
		passCap = 6
	}
	for pass := 0; pass < passCap; pass++ {
		changed := false
		order, err := g.TopoOrder()
		if err != nil {
			return err
		}
		for _, id := range order {
			if err := checkCancelled(env); err != nil {
				return err
			}
			if g.Node(id) == nil {
				continue // removed earlier this pass by another node's flatten
			}
			d, err := defOf(g, id)
			if err != nil {
				return err
			}
			var fn func(*graph.Graph, graph.NodeID) error
			var stage graph.Stage
			if phase == passPreOptimize {
				fn, stage = d.FlattenPre, graph.PreFlattened
			} else {
				fn, stage = d.FlattenPost, graph.PostFlattened
			}
			if fn == nil {
				continue
			}
			if err := fn(g, id); err != nil {
				return err
			}
			changed = true
			if n := g.Node(id); n != nil {
				n.Stage = stage
			}
		}
		if err := e.estimatePass(env, g); err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
	return nil
}

// optimizePass is Pass 3: a hook for graph-level rewrites that need full
// dimension knowledge but aren't a single node's own flatten step (spec
// §4.H). No optimizations are implemented yet; this is a deliberate no-op
// rather than a removed pass, so the five-pass structure and its ordering
// guarantees stay intact for callers and tests.
func (e *Engine) optimizePass(env nodes.ExecEnv, g *graph.Graph) error {
	order, err := g.TopoOrder()
	if err != nil {
		return err
	}
	for _, id := range order {
		if g.Node(id) == nil {
			continue
		}
		g.Node(id).Stage = graph.Optimized
	}
	return nil
}

// executePass runs every node's Execute function in topological order,
// leaving a final Result on each node (spec §4.H Pass 5). Mutate-in-place
// nodes borrow their parent's bitmap inside their own Execute; this pass
// transfers no bitmap ownership itself.
func (e *Engine) executePass(env nodes.ExecEnv, g *graph.Graph) error {
	order, err := g.TopoOrder()
	if err != nil {
		return err
	}
	for _, id := range order {
		if err := checkCancelled(env); err != nil {
			return err
		}
		n := g.Node(id)
		n.Stage = graph.InputsExecuted
		d, err := defOf(g, id)
		if err != nil {
			return err
		}
		if d.Execute != nil {
			for _, h := range e.hooks {
				h.BeforeNode(env, n.TypeName, id)
			}
			start := time.Now()
			err := runNodeExecute(d, env, g, id)
			elapsed := time.Since(start)
			for _, h := range e.hooks {
				h.AfterNode(env, n.TypeName, id, elapsed, err)
			}
			if err != nil {
				return ferr.Wrap(ferr.InvalidState, fmt.Sprintf("engine.Execute[%s]", n.TypeName), err)
			}
		}
		n.Stage = graph.Done
	}
	return nil
}

// runNodeExecute calls a node's Execute function, converting any panic into
// an InvalidState error carrying the panic payload (spec §7: "panics within
// a node are caught at the execute boundary and reported as InvalidState").
func runNodeExecute(d *nodes.Def, env nodes.ExecEnv, g *graph.Graph, id graph.NodeID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ferr.New(ferr.InvalidState, fmt.Sprintf("engine.Execute[%s]", d.TypeName), fmt.Errorf("panic: %v", r))
		}
	}()
	return d.Execute(env, g, id)
}
