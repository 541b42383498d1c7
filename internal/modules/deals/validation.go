package deals

import (
	"fmt"
	"strings"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type dealRules struct {
	ID          string  `validate:"required"`
	UserID      string  `validate:"required"`
	Make        string  `validate:"required"`
	Model       string  `validate:"required"`
	Year        int     `validate:"gte=1900,lte=2100"`
	Mileage     int     `validate:"gte=0"`
	AskingPrice float64 `validate:"gt=0"`
}

// Validate checks the facts an evaluation depends on. A VIN is optional but must be
// well formed when present.
func Validate(deal *domain.Deal) error {
	rules := dealRules{
		ID:          strings.TrimSpace(deal.ID),
		UserID:      strings.TrimSpace(deal.UserID),
		Make:        strings.TrimSpace(deal.VehicleMake),
		Model:       strings.TrimSpace(deal.VehicleModel),
		Year:        deal.VehicleYear,
		Mileage:     deal.VehicleMileage,
		AskingPrice: deal.AskingPrice,
	}
	if err := validate.Struct(rules); err != nil {
		return fmt.Errorf("%w: deal: %v", domain.ErrValidation, err)
	}
	if deal.VIN != "" && !domain.ValidVIN(deal.VIN) {
		return fmt.Errorf("%w: deal: malformed VIN %q", domain.ErrValidation, deal.VIN)
	}
	return nil
}
