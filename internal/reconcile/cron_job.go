package reconcile

import (
	"context"
	"errors"
)

// JobName is the scheduler name of the reconciliation job.
const JobName = "reconcile"

type runner interface {
	Run(ctx context.Context) (Report, error)
}

// CronJob adapts the driver to the scheduler job contract.
type CronJob struct {
	driver runner
}

// NewCronJob wraps the driver for the scheduler.
func NewCronJob(driver *Driver) (*CronJob, error) {
	if driver == nil {
		return nil, errors.New("reconcile driver required")
	}
	return &CronJob{driver: driver}, nil
}

func (j *CronJob) Name() string { return JobName }

// Run executes both passes; partial failures fail the scheduled run so they are counted.
func (j *CronJob) Run(ctx context.Context) error {
	_, err := j.driver.Run(ctx)
	return err
}
