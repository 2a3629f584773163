package client

import "go.uber.org/zap"

// LogRenderer is a headless Renderer that records stream lifecycle instead
// of drawing video. Useful for bots and load tools.
type LogRenderer struct {
	logger *zap.SugaredLogger
}

func NewLogRenderer(logger *zap.SugaredLogger) *LogRenderer {
	return &LogRenderer{logger: logger}
}

func (r *LogRenderer) Bind(remoteID string, stream MediaStream) {
	r.logger.Infow("remote stream bound", "remote_id", remoteID)
}

func (r *LogRenderer) Release(remoteID string) {
	r.logger.Infow("remote stream released", "remote_id", remoteID)
}
