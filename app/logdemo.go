package app

import "context"

// LogDemoService is a singleton that logs through the request-scoped logger.
type LogDemoService struct {
	logger RequestLogger
}

func NewLogDemoService(logger RequestLogger) *LogDemoService {
	return &LogDemoService{logger: logger}
}

func (s *LogDemoService) Logic(ctx context.Context, id string) {
	s.logger.Log(ctx, "service id = "+id)
}
