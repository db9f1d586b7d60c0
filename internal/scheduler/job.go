package scheduler

import (
	"context"
	"time"
)

// Job is a unit of scheduled work.
type Job interface {
	// Name identifies the job in logs and stats.
	Name() string

	// Run executes the job.
	Run(ctx context.Context) error

	// Schedule returns the cron expression (with seconds field),
	// e.g. "*/15 * * * * *" or "@hourly".
	Schedule() string
}

// RunRecord captures one job execution.
type RunRecord struct {
	Job      string        `json:"job"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
}

// runLog keeps a bounded window of recent executions per job.
type runLog struct {
	records []RunRecord
}

const runLogCapacity = 50

func (l *runLog) add(r RunRecord) {
	l.records = append(l.records, r)
	if len(l.records) > runLogCapacity {
		l.records = l.records[len(l.records)-runLogCapacity:]
	}
}

func (l *runLog) last() (RunRecord, bool) {
	if len(l.records) == 0 {
		return RunRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

func (l *runLog) counts() (success, failure int) {
	for _, r := range l.records {
		if r.Success {
			success++
		} else {
			failure++
		}
	}
	return success, failure
}

// JobStats is the admin-facing view of one job.
type JobStats struct {
	Job      string     `json:"job"`
	Schedule string     `json:"schedule"`
	Runs     int        `json:"runs"`
	Failures int        `json:"failures"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	LastOK   bool       `json:"last_ok"`
}
