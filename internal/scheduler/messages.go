package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketops/rankpulse/pkg/models"
)

// Notification copy. Run numbers are 1-based attempt counts; RunCount on the
// schedule is incremented by AdvanceSchedule after the attempt, so the
// in-flight attempt is RunCount+1.

func successMessage(s *models.ScheduledAnalysis, next time.Time) string {
	return fmt.Sprintf("Scheduled %s analysis #%d for %q (owner: %s) completed. Next run: %s.",
		s.AnalysisType, s.RunCount+1, s.Keyword, s.OwnerName,
		next.UTC().Format(time.RFC3339))
}

func failureMessage(s *models.ScheduledAnalysis, errMsg string, next time.Time) string {
	return fmt.Sprintf("Scheduled %s analysis #%d for %q (owner: %s) failed: %s. "+
		"The schedule remains active and will retry at the next scheduled slot (%s).",
		s.AnalysisType, s.RunCount+1, s.Keyword, s.OwnerName, errMsg,
		next.UTC().Format(time.RFC3339))
}

func escalationMessage(s *models.ScheduledAnalysis, runID uuid.UUID, reason string) string {
	ref := "unrecorded"
	if runID != uuid.Nil {
		ref = runID.String()
	}
	return fmt.Sprintf("Manual intervention required: run %s of schedule %q (owner: %s) "+
		"could not be recorded: %s. The stuck-run reaper is the remaining backstop.",
		ref, s.Keyword, s.OwnerName, reason)
}
