package interfaces

import "context"

type SchedulerInterface interface {
	Init()
	Stop()
	RunCleanup(ctx context.Context)
	Restore() error
	Persist() error
}
