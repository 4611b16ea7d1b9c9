package training

import "errors"

var (
	// ErrTensorRepositoryRequired is returned when a tensor repository is not provided.
	ErrTensorRepositoryRequired = errors.New("tensor repository required")

	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrStrategyRequired is returned when a nil strategy is configured.
	ErrStrategyRequired = errors.New("training strategy required")

	// ErrTensorNotFound is reported in a result when the tensor does not exist.
	ErrTensorNotFound = errors.New("tensor not found")

	// ErrJobUnavailable is reported when another worker holds the job.
	ErrJobUnavailable = errors.New("job acquired by another worker")

	// ErrMaxCyclesReached is reported when training stops short of the target.
	ErrMaxCyclesReached = errors.New("max training cycles reached")
)
