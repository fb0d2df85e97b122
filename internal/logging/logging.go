package logging

import "go.uber.org/zap"

// New builds the shared production logger. Pretty output is only used when
// LOG_PRETTY is set, for local runs.
func New(pretty bool) (*zap.Logger, error) {
	if pretty {
		c := zap.NewDevelopmentConfig()
		return c.Build(zap.AddStacktrace(zap.ErrorLevel))
	}
	c := zap.NewProductionConfig()
	c.DisableStacktrace = true
	return c.Build()
}
