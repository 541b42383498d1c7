package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/go-playground/validator/v10"
)

// user_inputs keys understood by the pipeline
const (
	InputVIN                  = "vin"
	InputConditionDescription = "condition_description"
	InputFinancingType        = "financing_type"
	InputInterestRate         = "interest_rate"
	InputDownPayment          = "down_payment"
	InputMonthlyIncome        = "monthly_income"
	InputInspectionCompleted  = "inspection_completed"
)

var questionText = map[string]string{
	InputVIN:                  "What is the vehicle's 17-character VIN?",
	InputConditionDescription: "How would you describe the vehicle's condition (excellent, good, fair or poor), including any known issues?",
	InputFinancingType:        "Will you pay cash or finance this purchase with a loan? (cash|loan)",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("vin", func(fl validator.FieldLevel) bool {
		return domain.ValidVIN(fl.Field().String())
	})
	return v
}

// answerSet is the validated view of the answer keys the pipeline reads
type answerSet struct {
	VIN                  *string  `validate:"omitnil,vin"`
	ConditionDescription *string  `validate:"omitnil,min=1,max=4000"`
	FinancingType        *string  `validate:"omitnil,oneof=cash loan"`
	InterestRate         *float64 `validate:"omitnil,gte=0,lte=100"`
	DownPayment          *float64 `validate:"omitnil,gte=0"`
	MonthlyIncome        *float64 `validate:"omitnil,gt=0"`
	InspectionCompleted  *bool
}

// normalizeAnswers validates answers and returns the values to merge into user_inputs.
// Known keys are coerced to their canonical form; unknown keys pass through unchanged.
func normalizeAnswers(answers map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(answers))
	var set answerSet

	for key, value := range answers {
		var err error
		switch key {
		case InputVIN:
			set.VIN, err = stringAnswer(key, value, domain.NormalizeVIN)
			out[key] = deref(set.VIN)
		case InputConditionDescription:
			set.ConditionDescription, err = stringAnswer(key, value, strings.TrimSpace)
			out[key] = deref(set.ConditionDescription)
		case InputFinancingType:
			set.FinancingType, err = stringAnswer(key, value, func(s string) string {
				return strings.ToLower(strings.TrimSpace(s))
			})
			out[key] = deref(set.FinancingType)
		case InputInterestRate:
			set.InterestRate, err = floatAnswer(key, value)
			out[key] = deref(set.InterestRate)
		case InputDownPayment:
			set.DownPayment, err = floatAnswer(key, value)
			out[key] = deref(set.DownPayment)
		case InputMonthlyIncome:
			set.MonthlyIncome, err = floatAnswer(key, value)
			out[key] = deref(set.MonthlyIncome)
		case InputInspectionCompleted:
			set.InspectionCompleted, err = boolAnswer(key, value)
			out[key] = deref(set.InspectionCompleted)
		default:
			out[key], err = plainAnswer(key, value)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := validate.Struct(set); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, describeValidation(err))
	}
	return out, nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", answerKey(fe.Field()), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}

func answerKey(field string) string {
	switch field {
	case "VIN":
		return InputVIN
	case "ConditionDescription":
		return InputConditionDescription
	case "FinancingType":
		return InputFinancingType
	case "InterestRate":
		return InputInterestRate
	case "DownPayment":
		return InputDownPayment
	case "MonthlyIncome":
		return InputMonthlyIncome
	default:
		return field
	}
}

func stringAnswer(key string, value any, norm func(string) string) (*string, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string", domain.ErrValidation, key)
	}
	s = norm(s)
	return &s, nil
}

func floatAnswer(key string, value any) (*float64, error) {
	f, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, key)
	}
	return &f, nil
}

func boolAnswer(key string, value any) (*bool, error) {
	b, ok := toBool(value)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be true or false", domain.ErrValidation, key)
	}
	return &b, nil
}

// plainAnswer converts decoder numbers inside an unknown answer to float64, the type they
// have after a round trip through result_json
func plainAnswer(key string, value any) (any, error) {
	switch v := value.(type) {
	case json.Number:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a finite number", domain.ErrValidation, key)
		}
		return f, nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %s must be a finite number", domain.ErrValidation, key)
		}
		return v, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			converted, err := plainAnswer(key+"."+k, item)
			if err != nil {
				return nil, err
			}
			out[k] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			converted, err := plainAnswer(fmt.Sprintf("%s[%d]", key, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return value, nil
	}
}

// toFloat accepts finite numbers only; result_json cannot encode Inf or NaN
func toFloat(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Typed readers over merged user_inputs

func inputString(inputs map[string]any, key string) string {
	s, _ := inputs[key].(string)
	return strings.TrimSpace(s)
}

func inputFloat(inputs map[string]any, key string) *float64 {
	value, present := inputs[key]
	if !present {
		return nil
	}
	f, ok := toFloat(value)
	if !ok {
		return nil
	}
	return &f
}

func inputBool(inputs map[string]any, key string) bool {
	b, _ := toBool(inputs[key])
	return b
}

// missingInputs lists the required inputs of step that user_inputs does not provide
func missingInputs(step Step, inputs map[string]any) []string {
	var missing []string
	for _, key := range step.RequiredInputs() {
		if inputString(inputs, key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// questionsFor phrases missing inputs as questions for the user
func questionsFor(missing []string) []string {
	questions := make([]string, 0, len(missing))
	for _, key := range missing {
		if text, ok := questionText[key]; ok {
			questions = append(questions, text)
			continue
		}
		questions = append(questions, fmt.Sprintf("Please provide %s.", key))
	}
	return questions
}
