package pipeline

import (
	"github.com/sirupsen/logrus"

	"github.com/askiada/bookimport/pkg/pipeline/model"
)

type Option func(p *Pipeline)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRunOptions adds options following the run, such as measures and drawers.
func WithRunOptions(opts ...model.PipelineOption) Option {
	return func(p *Pipeline) {
		p.opts = append(p.opts, opts...)
	}
}
