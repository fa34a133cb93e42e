package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"FreightDocAI/app/models"
)

// extractionQuery is fixed and never user-supplied; it is tuned to pull
// the chunks that usually carry shipment header fields.
const extractionQuery = "shipment details shipper consignee rate carrier"

var (
	// ErrGeneration marks a failure of the generation capability itself.
	ErrGeneration = errors.New("generation failed")
	// ErrSchemaValidation marks output that came back but does not
	// conform to the ShipmentRecord schema. An all-null record is valid.
	ErrSchemaValidation = errors.New("schema validation failed")
)

var validate = validator.New()

// ShipmentRecord is the standardized record extracted from a logistics
// document. Every field is optional; nil means the field was not found.
type ShipmentRecord struct {
	ShipmentID       *string  `json:"shipment_id"`
	Shipper          *string  `json:"shipper"`
	Consignee        *string  `json:"consignee"`
	PickupDatetime   *string  `json:"pickup_datetime"`
	DeliveryDatetime *string  `json:"delivery_datetime"`
	EquipmentType    *string  `json:"equipment_type"`
	Mode             *string  `json:"mode"`
	Rate             *float64 `json:"rate"`
	Currency         *string  `json:"currency" validate:"omitempty,alpha"`
	Weight           *string  `json:"weight"`
	CarrierName      *string  `json:"carrier_name"`
}

// Extract runs the fixed retrieval query against the index and coerces
// the generation output into a ShipmentRecord. Generation failures and
// schema failures surface as distinct errors; missing fields do not.
func (e *Engine) Extract(ctx context.Context) (*ShipmentRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	vec, err := e.model.EmbedText(ctx, extractionQuery)
	if err != nil {
		return nil, fmt.Errorf("embed extraction query: %w", err)
	}
	results, err := e.store.Search(ctx, vec, e.extractTopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	contextText := joinTexts(results, "\n")
	raw, err := e.model.Generate(ctx, []models.Message{
		{Role: "system", Content: models.ExtractionSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(models.ExtractionUserTemplate, contextText)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	return decodeRecord(raw)
}

// decodeRecord is the deterministic parse/validate step that turns the
// capability's free-form output into a typed record, so schema failures
// are distinguishable from capability failures.
func decodeRecord(raw string) (*ShipmentRecord, error) {
	payload := stripToJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrSchemaValidation)
	}

	var record ShipmentRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	if err := validate.Struct(record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	return &record, nil
}

// stripToJSON isolates the outermost JSON object from model output that
// may be wrapped in code fences or prose.
func stripToJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
