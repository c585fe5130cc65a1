package scheduler

import (
	"github.com/rs/zerolog"
)

// Sweeper drops expired state and reports how much was removed.
type Sweeper interface {
	Sweep() int
}

// SweepJob periodically sweeps an in-memory structure.
type SweepJob struct {
	name    string
	sweeper Sweeper
	log     zerolog.Logger
}

// NewSweepJob creates a sweep job.
func NewSweepJob(name string, sweeper Sweeper, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		name:    name,
		sweeper: sweeper,
		log:     log.With().Str("job", name).Logger(),
	}
}

// Name returns the job name.
func (j *SweepJob) Name() string {
	return j.name
}

// Run performs one sweep.
func (j *SweepJob) Run() error {
	if removed := j.sweeper.Sweep(); removed > 0 {
		j.log.Debug().Int("removed", removed).Msg("Swept expired entries")
	}
	return nil
}
