package journal

import (
	"github.com/yanun0323/logs"
)

// RecoveryReport lists the execution groups flagged at startup.
type RecoveryReport struct {
	Flagged        []string
	AlreadyFlagged []string
}

// Recover scans the journal for groups interrupted by an unclean
// shutdown. Every IN_PROGRESS group is relabeled REQUIRES_RECOVERY and
// surfaced for operator follow-up. Nothing is re-submitted: after a
// crash of unknown extent, replaying legs risks duplicate fills.
func Recover(store Store) (RecoveryReport, error) {
	var report RecoveryReport

	entries, err := store.ListByStatus(StatusInProgress, StatusRequiresRecovery)
	if err != nil {
		return report, err
	}

	for _, e := range entries {
		switch e.Status {
		case StatusInProgress:
			if err := store.UpdateStatus(e.GroupID, StatusRequiresRecovery); err != nil {
				return report, err
			}
			logs.Warnf("journal recovery: group %s (strategy %s) interrupted in flight, flagged for manual recovery", e.GroupID, e.StrategyID)
			report.Flagged = append(report.Flagged, e.GroupID)
		case StatusRequiresRecovery:
			report.AlreadyFlagged = append(report.AlreadyFlagged, e.GroupID)
		}
	}

	if n := len(report.Flagged) + len(report.AlreadyFlagged); n > 0 {
		logs.Warnf("journal recovery: %d execution group(s) need operator attention", n)
	}
	return report, nil
}
