package scheduler

import (
	"fmt"

	"github.com/wonny/trendhealth/pkg/logger"
)

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

// Info is only emitted at debug level; cron logs every tick
func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
