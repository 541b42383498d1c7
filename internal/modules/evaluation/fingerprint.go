package evaluation

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// fingerprintInput is everything a step result depends on
type fingerprintInput struct {
	DealID      string            `msgpack:"deal_id"`
	Make        string            `msgpack:"make"`
	Model       string            `msgpack:"model"`
	VIN         string            `msgpack:"vin"`
	Year        int               `msgpack:"year"`
	Mileage     int               `msgpack:"mileage"`
	AskingPrice float64           `msgpack:"asking_price"`
	Step        string            `msgpack:"step"`
	UserInputs  map[string]any    `msgpack:"user_inputs"`
	Prior       map[string][]byte `msgpack:"prior"`
	ConfigID    string            `msgpack:"config_id"`
}

// stepCacheKey returns deal:{deal_id}:{step}:{fingerprint} for the inputs step would run with
func stepCacheKey(deal *domain.Deal, step Step, results *Results, configID string) (string, error) {
	in := fingerprintInput{
		DealID:      deal.ID,
		Make:        deal.VehicleMake,
		Model:       deal.VehicleModel,
		VIN:         deal.VIN,
		Year:        deal.VehicleYear,
		Mileage:     deal.VehicleMileage,
		AskingPrice: deal.AskingPrice,
		Step:        step.Key(),
		UserInputs:  results.UserInputs,
		Prior:       make(map[string][]byte, step.Index()),
		ConfigID:    configID,
	}
	for _, prior := range Steps[:step.Index()] {
		data, err := results.entryJSON(prior)
		if err != nil {
			return "", err
		}
		in.Prior[prior.Key()] = data
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&in); err != nil {
		return "", fmt.Errorf("failed to encode fingerprint: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return fmt.Sprintf("deal:%s:%s:%s", deal.ID, step.Key(), hex.EncodeToString(sum[:])), nil
}
