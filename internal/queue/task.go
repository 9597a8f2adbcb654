// Package queue carries evaluation tasks from the API to the worker over NATS JetStream.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedTask is returned for payloads that cannot be processed and must be dropped.
var ErrMalformedTask = errors.New("malformed evaluation task")

// EvaluationTask is the message published for every new submission.
type EvaluationTask struct {
	SubmissionID uint   `json:"submission_id"`
	ProblemID    uint   `json:"problem_id"`
	SolutionText string `json:"solution_text"`
}

// Encode serialises the task.
func (t EvaluationTask) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTask parses a message body. A body without a submission id is malformed.
func DecodeTask(data []byte) (EvaluationTask, error) {
	var task EvaluationTask
	if err := json.Unmarshal(data, &task); err != nil {
		return EvaluationTask{}, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	if task.SubmissionID == 0 {
		return EvaluationTask{}, fmt.Errorf("%w: missing submission_id", ErrMalformedTask)
	}
	return task, nil
}
