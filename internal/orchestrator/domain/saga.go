package domain

import "time"

type SagaState string

const (
	StateStarted      SagaState = "started"
	StateCompensating SagaState = "compensating"
	StateCompleted    SagaState = "completed"
	StateCompensated  SagaState = "compensated"
	StateFailed       SagaState = "failed"
)

// Saga is the outcome of one run. Failed means a compensation did not succeed
// and manual repair may be needed.
type Saga struct {
	ID          string
	Name        string
	State       SagaState
	Completed   []string
	FailedStep  string
	Errors      []string
	StartedAt   time.Time
	CompletedAt time.Time
}

func (s *Saga) StepDone(name string) { s.Completed = append(s.Completed, name) }

func (s *Saga) Fail(step string, err error) {
	s.FailedStep = step
	s.Errors = append(s.Errors, step+": "+err.Error())
}

func (s *Saga) CompensationFailed(step string, err error) {
	s.Errors = append(s.Errors, "compensate "+step+": "+err.Error())
}
