// internal/runner/runner.go

// Package runner executes action scripts through the engine, one step at a time.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/engine"
)

// Navigator loads a URL in the page the engine drives.
type Navigator interface {
	Goto(ctx context.Context, url string) error
}

// StepResult reports the outcome of one executed step.
type StepResult struct {
	Index    int
	Action   schemas.ScriptAction
	Duration time.Duration
	// Selected holds the values a select_option step ended up selecting.
	Selected []string
	Err      error
}

// Runner executes scripts against one page.
type Runner struct {
	engine *engine.Engine
	nav    Navigator
	logger *zap.Logger
}

// New creates a runner. nav may be nil when scripts never navigate.
func New(e *engine.Engine, nav Navigator, logger *zap.Logger) (*Runner, error) {
	if e == nil || logger == nil {
		return nil, errors.New("cannot initialize runner with nil dependencies")
	}
	return &Runner{engine: e, nav: nav, logger: logger.Named("runner")}, nil
}

// Run executes the script's steps in order, stopping at the first failure.
// The returned results cover every step attempted; the error is the failing step's.
func (r *Runner) Run(ctx context.Context, script *schemas.Script) ([]StepResult, error) {
	r.logger.Info("Running script.", zap.String("script", script.Name), zap.Int("steps", len(script.Steps)))

	steps := script.Steps
	if script.URL != "" {
		steps = append([]schemas.ScriptStep{{Action: schemas.StepNavigate, URL: script.URL}}, steps...)
	}

	results := make([]StepResult, 0, len(steps))
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		selected, err := r.runStep(ctx, step)
		res := StepResult{Index: i, Action: step.Action, Duration: time.Since(start), Selected: selected, Err: err}
		results = append(results, res)
		if err != nil {
			r.logger.Warn("Step failed.",
				zap.Int("index", i),
				zap.String("action", string(step.Action)),
				zap.String("kind", engine.KindOf(err).String()),
				zap.Error(err))
			return results, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		r.logger.Debug("Step completed.", zap.Int("index", i), zap.String("action", string(step.Action)), zap.Duration("duration", res.Duration))
	}
	r.logger.Info("Script completed.", zap.String("script", script.Name))
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, s schemas.ScriptStep) ([]string, error) {
	if s.Action == schemas.StepNavigate {
		if r.nav == nil {
			return nil, errors.New("runner has no navigator")
		}
		timeout := time.Duration(s.Options.TimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = r.engine.NavigationTimeout()
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return nil, r.nav.Goto(ctx, s.URL)
	}

	target, err := buildLocator(s.TargetSpec)
	if err != nil {
		return nil, err
	}
	opts, err := actionOptions(s.Options)
	if err != nil {
		return nil, err
	}
	e := r.engine

	switch s.Action {
	case schemas.StepClick:
		return nil, e.Click(ctx, target, engine.ClickOptions{ActionOptions: opts})
	case schemas.StepDblClick:
		return nil, e.DblClick(ctx, target, engine.ClickOptions{ActionOptions: opts})
	case schemas.StepHover:
		return nil, e.Hover(ctx, target, opts)
	case schemas.StepTap:
		return nil, e.Tap(ctx, target, opts)
	case schemas.StepCheck:
		return nil, e.Check(ctx, target, opts)
	case schemas.StepUncheck:
		return nil, e.Uncheck(ctx, target, opts)
	case schemas.StepSetChecked:
		if s.Checked == nil {
			return nil, errors.New("checked is required")
		}
		return nil, e.SetChecked(ctx, target, *s.Checked, opts)
	case schemas.StepFill:
		return nil, e.Fill(ctx, target, s.Value, opts)
	case schemas.StepType:
		return nil, e.Type(ctx, target, s.Value, typeOptions(opts, s.Options))
	case schemas.StepPress:
		return nil, e.Press(ctx, target, s.Key, typeOptions(opts, s.Options))
	case schemas.StepSelectOption:
		values := s.Values
		if len(values) == 0 {
			values = []string{s.Value}
		}
		return e.SelectOption(ctx, target, values, opts)
	case schemas.StepSetInputFiles:
		files, err := resolveFiles(s.Files)
		if err != nil {
			return nil, err
		}
		return nil, e.SetInputFiles(ctx, target, files, opts)
	case schemas.StepDragAndDrop:
		if s.Target == nil {
			return nil, errors.New("target is required")
		}
		dest, err := buildLocator(*s.Target)
		if err != nil {
			return nil, err
		}
		return nil, e.DragAndDrop(ctx, target, dest, engine.DragOptions{ActionOptions: opts})
	case schemas.StepScrollIntoView:
		return nil, e.ScrollIntoViewIfNeeded(ctx, target, opts)
	case schemas.StepWaitForState:
		state, ok := engine.ParseElementState(s.State)
		if !ok {
			return nil, fmt.Errorf("unknown state %q", s.State)
		}
		return nil, e.WaitForElementState(ctx, target, state, opts)
	default:
		return nil, fmt.Errorf("unknown action %q", s.Action)
	}
}

// buildLocator turns a script target into an engine locator.
func buildLocator(t schemas.TargetSpec) (engine.Locator, error) {
	if t.Selector == "" {
		return engine.Locator{}, errors.New("selector is required")
	}
	var l engine.Locator
	if t.Within != nil {
		parent, err := buildLocator(*t.Within)
		if err != nil {
			return engine.Locator{}, fmt.Errorf("within: %w", err)
		}
		l = parent.Locator(t.Selector)
	} else {
		l = engine.NewLocator(t.Selector)
	}
	if t.HasText != "" || t.HasNotText != "" || t.Role != "" || t.Name != "" {
		l = l.Filter(engine.Filter{HasText: t.HasText, HasNotText: t.HasNotText, Role: t.Role, Name: t.Name})
	}
	if t.Nth != nil {
		l = l.Nth(*t.Nth)
	}
	return l, nil
}

func actionOptions(o schemas.StepOptions) (engine.ActionOptions, error) {
	mods, err := schemas.ParseModifiers(o.Modifiers)
	if err != nil {
		return engine.ActionOptions{}, err
	}
	opts := engine.ActionOptions{
		Force:       o.Force,
		NoWaitAfter: o.NoWaitAfter,
		Trial:       o.Trial,
		Timeout:     time.Duration(o.TimeoutMs) * time.Millisecond,
		Modifiers:   mods,
	}
	if o.Position != nil {
		p := *o.Position
		opts.Position = &p
	}
	return opts, nil
}

func typeOptions(opts engine.ActionOptions, o schemas.StepOptions) engine.TypeOptions {
	return engine.TypeOptions{ActionOptions: opts, Delay: time.Duration(o.DelayMs) * time.Millisecond}
}

// resolveFiles expands "~" and makes every path absolute.
func resolveFiles(files []string) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, f := range files {
		expanded, err := homedir.Expand(f)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %q: %w", f, err)
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

// Job pairs a runner with the script it should execute.
type Job struct {
	Runner *Runner
	Script *schemas.Script
}

// RunAll executes independent scripts concurrently. The first failure cancels
// the remaining scripts; results are indexed like jobs.
func RunAll(ctx context.Context, jobs []Job) ([][]StepResult, error) {
	results := make([][]StepResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := job.Runner.Run(gctx, job.Script)
			results[i] = res
			if err != nil {
				return fmt.Errorf("script %q: %w", job.Script.Name, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
