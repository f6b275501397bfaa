package profile

import (
	"profile_server/internal/batch"
	"profile_server/platform/logger"
)

const (
	eventCached = "batch.cached"
	eventFresh  = "batch.db"
)

// observe records where the served value came from. Cached values carry
// their storage time, remaining freshness in milliseconds and any problem the
// engine reported while serving them.
func observe(log *logger.Logger, outcome *batch.Outcome) {
	if !outcome.FromCache() {
		log.Info(eventFresh)
		return
	}

	var reportErr any
	if outcome.Report != nil && outcome.Report.Error != nil {
		reportErr = outcome.Report.Error.Error()
	}
	log.Info(eventCached,
		"storedAt", outcome.Cached.Stored,
		"error", reportErr,
		"ttl", outcome.Cached.TTL.Milliseconds(),
	)
}
