package pipeline

import (
	"time"

	"go.uber.org/zap"

	"mlviz/pkg/data"
)

// Step transforms a frame in place.
type Step interface {
	Name() string
	Apply(f *data.Frame) error
}

type stepFunc struct {
	name string
	fn   func(f *data.Frame) error
}

func (s stepFunc) Name() string               { return s.name }
func (s stepFunc) Apply(f *data.Frame) error { return s.fn(f) }

// Func adapts a function into a named Step.
func Func(name string, fn func(f *data.Frame) error) Step {
	return stepFunc{name: name, fn: fn}
}

// Pipeline chains steps over one frame.
type Pipeline struct {
	steps  []Step
	logger *zap.Logger
}

func NewPipeline(logger *zap.Logger, steps ...Step) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{steps: steps, logger: logger}
}

// Run applies every step in order and stops at the first error, which is
// returned unchanged so callers can match it.
func (p *Pipeline) Run(f *data.Frame) error {
	for _, step := range p.steps {
		start := time.Now()
		if err := step.Apply(f); err != nil {
			p.logger.Debug("step failed", zap.String("step", step.Name()), zap.Error(err))
			return err
		}
		p.logger.Debug("step done",
			zap.String("step", step.Name()),
			zap.Int("rows", f.Len()),
			zap.Int("columns", len(f.Columns())),
			zap.Duration("took", time.Since(start)),
		)
	}
	return nil
}
