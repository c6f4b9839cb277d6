package notify

import (
	"context"
	"errors"
)

// JobName is the scheduler name of the reminder job.
const JobName = "reminder"

type checker interface {
	CheckAndNotify(ctx context.Context, force bool) (Result, error)
}

// CronJob runs the unforced reminder check on schedule.
type CronJob struct {
	svc checker
}

func NewCronJob(svc *Service) (*CronJob, error) {
	if svc == nil {
		return nil, errors.New("notify service required")
	}
	return &CronJob{svc: svc}, nil
}

func (j *CronJob) Name() string { return JobName }

func (j *CronJob) Run(ctx context.Context) error {
	_, err := j.svc.CheckAndNotify(ctx, false)
	return err
}
