package app

import (
	"strings"

	"github.com/casavia/casavia/pkg/logger"
)

// ConfigureLogging initialises the global zap logger from server.log_level.
// Levels match case-insensitively so CASAVIA_SERVER_LOG_LEVEL=DEBUG works;
// blank or unknown values mean info.
func ConfigureLogging(level string) error {
	return logger.Init(strings.ToLower(strings.TrimSpace(level)))
}
