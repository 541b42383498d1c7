package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aristath/dealeval/internal/modules/evaluation/evaluators"
)

// userInputsKey is the reserved result_json key holding merged answers
const userInputsKey = "user_inputs"

var errEntryOverwrite = errors.New("completed step entry cannot be overwritten")

// StepEntry is the result_json entry of one step.
// A completed entry carries an assessment; a blocked one carries questions.
type StepEntry[A any] struct {
	Assessment *A       `json:"assessment,omitempty"`
	Questions  []string `json:"questions"`
	Completed  bool     `json:"completed"`
}

func completedEntry[A any](assessment A) *StepEntry[A] {
	return &StepEntry[A]{Completed: true, Assessment: &assessment, Questions: []string{}}
}

func blockedEntry[A any](questions []string) *StepEntry[A] {
	return &StepEntry[A]{Questions: questions}
}

// Results is the typed result_json document.
// Keys this version does not know are kept in Extra and written back unchanged.
type Results struct {
	VehicleCondition *StepEntry[evaluators.ConditionAssessment]
	Price            *StepEntry[evaluators.PriceAssessment]
	Financing        *StepEntry[evaluators.FinancingAssessment]
	Risk             *StepEntry[evaluators.RiskAssessment]
	Final            *StepEntry[evaluators.FinalAssessment]
	UserInputs       map[string]any
	Extra            map[string]json.RawMessage
}

// MarshalJSON writes step entries under their lower-case keys next to any preserved unknown keys
func (r Results) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Extra)+6)
	for k, v := range r.Extra {
		doc[k] = v
	}

	put := func(key string, entry any, present bool) {
		if present {
			doc[key] = entry
		}
	}
	put(StepVehicleCondition.Key(), r.VehicleCondition, r.VehicleCondition != nil)
	put(StepPrice.Key(), r.Price, r.Price != nil)
	put(StepFinancing.Key(), r.Financing, r.Financing != nil)
	put(StepRisk.Key(), r.Risk, r.Risk != nil)
	put(StepFinal.Key(), r.Final, r.Final != nil)

	inputs := r.UserInputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	doc[userInputsKey] = inputs

	return json.Marshal(doc)
}

// UnmarshalJSON reads a stored document. Unknown keys go to Extra.
func (r *Results) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode result_json: %w", err)
	}

	*r = Results{}
	for key, raw := range doc {
		var err error
		switch key {
		case StepVehicleCondition.Key():
			err = json.Unmarshal(raw, &r.VehicleCondition)
		case StepPrice.Key():
			err = json.Unmarshal(raw, &r.Price)
		case StepFinancing.Key():
			err = json.Unmarshal(raw, &r.Financing)
		case StepRisk.Key():
			err = json.Unmarshal(raw, &r.Risk)
		case StepFinal.Key():
			err = json.Unmarshal(raw, &r.Final)
		case userInputsKey:
			err = json.Unmarshal(raw, &r.UserInputs)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = append(json.RawMessage(nil), raw...)
		}
		if err != nil {
			return fmt.Errorf("failed to decode result_json[%s]: %w", key, err)
		}
	}
	return nil
}

// Clone deep-copies the document through its JSON form
func (r Results) Clone() (Results, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return Results{}, err
	}
	var out Results
	if err := json.Unmarshal(data, &out); err != nil {
		return Results{}, err
	}
	return out, nil
}

// Completed reports whether step has a completed entry
func (r *Results) Completed(step Step) bool {
	switch step {
	case StepVehicleCondition:
		return r.VehicleCondition != nil && r.VehicleCondition.Completed
	case StepPrice:
		return r.Price != nil && r.Price.Completed
	case StepFinancing:
		return r.Financing != nil && r.Financing.Completed
	case StepRisk:
		return r.Risk != nil && r.Risk.Completed
	case StepFinal:
		return r.Final != nil && r.Final.Completed
	default:
		return false
	}
}

// Questions returns the open questions stored for step
func (r *Results) Questions(step Step) []string {
	switch step {
	case StepVehicleCondition:
		if r.VehicleCondition != nil {
			return r.VehicleCondition.Questions
		}
	case StepPrice:
		if r.Price != nil {
			return r.Price.Questions
		}
	case StepFinancing:
		if r.Financing != nil {
			return r.Financing.Questions
		}
	case StepRisk:
		if r.Risk != nil {
			return r.Risk.Questions
		}
	case StepFinal:
		if r.Final != nil {
			return r.Final.Questions
		}
	}
	return nil
}

// Assessment returns the stored assessment of step, or nil
func (r *Results) Assessment(step Step) any {
	switch step {
	case StepVehicleCondition:
		if r.Completed(step) {
			return r.VehicleCondition.Assessment
		}
	case StepPrice:
		if r.Completed(step) {
			return r.Price.Assessment
		}
	case StepFinancing:
		if r.Completed(step) {
			return r.Financing.Assessment
		}
	case StepRisk:
		if r.Completed(step) {
			return r.Risk.Assessment
		}
	case StepFinal:
		if r.Completed(step) {
			return r.Final.Assessment
		}
	}
	return nil
}

// block records open questions for a step that has not completed yet
func (r *Results) block(step Step, questions []string) error {
	if r.Completed(step) {
		return fmt.Errorf("%w: step %s already completed", errEntryOverwrite, step)
	}
	switch step {
	case StepVehicleCondition:
		r.VehicleCondition = blockedEntry[evaluators.ConditionAssessment](questions)
	case StepPrice:
		r.Price = blockedEntry[evaluators.PriceAssessment](questions)
	case StepFinancing:
		r.Financing = blockedEntry[evaluators.FinancingAssessment](questions)
	case StepRisk:
		r.Risk = blockedEntry[evaluators.RiskAssessment](questions)
	case StepFinal:
		r.Final = blockedEntry[evaluators.FinalAssessment](questions)
	default:
		return fmt.Errorf("unknown evaluation step %q", step)
	}
	return nil
}

// complete stores the assessment of step. A completed entry is never replaced.
func (r *Results) complete(step Step, assessment any) error {
	if r.Completed(step) {
		return fmt.Errorf("%w: step %s already completed", errEntryOverwrite, step)
	}

	ok := false
	switch step {
	case StepVehicleCondition:
		var a evaluators.ConditionAssessment
		if a, ok = assessment.(evaluators.ConditionAssessment); ok {
			r.VehicleCondition = completedEntry(a)
		}
	case StepPrice:
		var a evaluators.PriceAssessment
		if a, ok = assessment.(evaluators.PriceAssessment); ok {
			r.Price = completedEntry(a)
		}
	case StepFinancing:
		var a evaluators.FinancingAssessment
		if a, ok = assessment.(evaluators.FinancingAssessment); ok {
			r.Financing = completedEntry(a)
		}
	case StepRisk:
		var a evaluators.RiskAssessment
		if a, ok = assessment.(evaluators.RiskAssessment); ok {
			r.Risk = completedEntry(a)
		}
	case StepFinal:
		var a evaluators.FinalAssessment
		if a, ok = assessment.(evaluators.FinalAssessment); ok {
			r.Final = completedEntry(a)
		}
	default:
		return fmt.Errorf("unknown evaluation step %q", step)
	}
	if !ok {
		return fmt.Errorf("assessment %T does not belong to step %s", assessment, step)
	}
	return nil
}

// mergeInputs overwrites existing keys with answers and never deletes any
func (r *Results) mergeInputs(answers map[string]any) {
	if len(answers) == 0 {
		return
	}
	if r.UserInputs == nil {
		r.UserInputs = make(map[string]any, len(answers))
	}
	for k, v := range answers {
		r.UserInputs[k] = v
	}
}

// entryJSON is the serialized entry of step, used to fingerprint prior results
func (r *Results) entryJSON(step Step) ([]byte, error) {
	switch step {
	case StepVehicleCondition:
		return json.Marshal(r.VehicleCondition)
	case StepPrice:
		return json.Marshal(r.Price)
	case StepFinancing:
		return json.Marshal(r.Financing)
	case StepRisk:
		return json.Marshal(r.Risk)
	case StepFinal:
		return json.Marshal(r.Final)
	default:
		return nil, fmt.Errorf("unknown evaluation step %q", step)
	}
}
