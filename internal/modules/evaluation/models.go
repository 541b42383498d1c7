// Package evaluation drives the deal evaluation pipeline: a fixed five-step state machine
// that scores vehicle condition, price, financing and risk, then aggregates a recommendation.
package evaluation

import (
	"fmt"
	"time"
)

// Step is one stage of the pipeline
type Step string

const (
	StepVehicleCondition Step = "VEHICLE_CONDITION"
	StepPrice            Step = "PRICE"
	StepFinancing        Step = "FINANCING"
	StepRisk             Step = "RISK"
	StepFinal            Step = "FINAL"
)

// Steps lists every step in pipeline order
var Steps = []Step{StepVehicleCondition, StepPrice, StepFinancing, StepRisk, StepFinal}

// ParseStep converts a stored step name
func ParseStep(s string) (Step, error) {
	step := Step(s)
	if step.Index() < 0 {
		return "", fmt.Errorf("unknown evaluation step %q", s)
	}
	return step, nil
}

// Index is the position of s in pipeline order, or -1 for unknown steps
func (s Step) Index() int {
	switch s {
	case StepVehicleCondition:
		return 0
	case StepPrice:
		return 1
	case StepFinancing:
		return 2
	case StepRisk:
		return 3
	case StepFinal:
		return 4
	default:
		return -1
	}
}

// Next returns the step after s. FINAL has no successor.
func (s Step) Next() (Step, bool) {
	switch s {
	case StepVehicleCondition:
		return StepPrice, true
	case StepPrice:
		return StepFinancing, true
	case StepFinancing:
		return StepRisk, true
	case StepRisk:
		return StepFinal, true
	default:
		return "", false
	}
}

// Key is the lower-case result_json key for s
func (s Step) Key() string {
	switch s {
	case StepVehicleCondition:
		return "vehicle_condition"
	case StepPrice:
		return "price"
	case StepFinancing:
		return "financing"
	case StepRisk:
		return "risk"
	case StepFinal:
		return "final"
	default:
		return ""
	}
}

// RequiredInputs lists the user_inputs keys s cannot run without
func (s Step) RequiredInputs() []string {
	switch s {
	case StepVehicleCondition:
		return []string{InputVIN, InputConditionDescription}
	case StepFinancing:
		return []string{InputFinancingType}
	default:
		return nil
	}
}

// Status is the pipeline state of a record
type Status string

const (
	StatusAnalyzing     Status = "ANALYZING"
	StatusAwaitingInput Status = "AWAITING_INPUT"
	StatusCompleted     Status = "COMPLETED"
)

// ParseStatus converts a stored status name
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusAnalyzing, StatusAwaitingInput, StatusCompleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown evaluation status %q", s)
	}
}

// CanAcceptAnswers reports whether answers may be submitted in this status
func (s Status) CanAcceptAnswers() bool {
	switch s {
	case StatusAwaitingInput:
		return true
	case StatusAnalyzing, StatusCompleted:
		return false
	default:
		return false
	}
}

// CanProcess reports whether another step may run in this status
func (s Status) CanProcess() bool {
	switch s {
	case StatusAnalyzing, StatusAwaitingInput:
		return true
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// afterStep is the transition table: the (step, status) a record moves to once step completes
func afterStep(step Step) (Step, Status) {
	next, ok := step.Next()
	if !ok {
		return StepFinal, StatusCompleted
	}
	return next, StatusAnalyzing
}

// Record is one evaluation attempt of a deal by a user
type Record struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DealID      string    `json:"deal_id"`
	Status      Status    `json:"status"`
	CurrentStep Step      `json:"current_step"`
	Results     Results   `json:"result_json"`
	Version     int64     `json:"version"`
}

// Clone returns a deep copy of r
func (r *Record) Clone() (*Record, error) {
	results, err := r.Results.Clone()
	if err != nil {
		return nil, err
	}
	out := *r
	out.Results = results
	return &out, nil
}

// checkInvariants rejects record states the pipeline must never persist
func (r *Record) checkInvariants() error {
	if r.CurrentStep.Index() < 0 {
		return fmt.Errorf("unknown evaluation step %q", r.CurrentStep)
	}
	for _, step := range Steps[:r.CurrentStep.Index()] {
		if !r.Results.Completed(step) {
			return fmt.Errorf("step %s is behind current step %s but not completed", step, r.CurrentStep)
		}
	}

	switch r.Status {
	case StatusAwaitingInput:
		if r.Results.Completed(r.CurrentStep) || len(r.Results.Questions(r.CurrentStep)) == 0 {
			return fmt.Errorf("awaiting input on %s without open questions", r.CurrentStep)
		}
	case StatusCompleted:
		if r.CurrentStep != StepFinal || !r.Results.Completed(StepFinal) {
			return fmt.Errorf("completed evaluation without a final result")
		}
	case StatusAnalyzing:
		if r.Results.Completed(r.CurrentStep) {
			return fmt.Errorf("analyzing step %s that already completed", r.CurrentStep)
		}
	default:
		return fmt.Errorf("unknown evaluation status %q", r.Status)
	}
	return nil
}

// StepResult is what one process call produced for the step it ran
type StepResult struct {
	Assessment any      `json:"assessment,omitempty"`
	Step       Step     `json:"step"`
	Questions  []string `json:"questions"`
	Completed  bool     `json:"completed"`
}

// ProcessRequest asks the pipeline to run the current step of an evaluation
type ProcessRequest struct {
	Answers      map[string]any
	EvaluationID string
	DealID       string
}

// ProcessResponse is the public result of one process call
type ProcessResponse struct {
	EvaluationID string     `json:"evaluation_id"`
	DealID       string     `json:"deal_id"`
	Status       Status     `json:"status"`
	CurrentStep  Step       `json:"current_step"`
	StepResult   StepResult `json:"step_result"`
	ResultJSON   Results    `json:"result_json"`
}
