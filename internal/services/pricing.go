package services

import (
	"encoding/json"
	"math"

	"github.com/Ganngann/form-act-sub001/internal/models"
)

// VATRate is the fixed Belgian VAT applied to every displayed price. The
// inclusive figure is always derived at presentation time, never stored.
const VATRate = 0.21

type PriceQuote struct {
	ExclVAT float64 `json:"excl_vat"`
	InclVAT float64 `json:"incl_vat"`
}

func QuotePrice(exclVAT float64) PriceQuote {
	return PriceQuote{
		ExclVAT: roundCents(exclVAT),
		InclVAT: roundCents(exclVAT * (1 + VATRate)),
	}
}

// BillingData is the invoice breakdown persisted on the session once billed.
type BillingData struct {
	BasePrice       float64  `json:"basePrice"`
	DistanceFee     float64  `json:"distanceFee"`
	OptionsFee      float64  `json:"optionsFee"`
	OptionsDetails  []string `json:"optionsDetails"`
	AdminAdjustment float64  `json:"adminAdjustment"`
	FinalPrice      float64  `json:"finalPrice"`
}

// BuildBillingPreview composes the invoice breakdown for a session. An
// accepted offer price overrides the formation list price; it is the amount
// the client agreed to and must trace through to the final invoice.
func BuildBillingPreview(session *models.TrainingSession, formation *models.Formation, adminAdjustment float64) BillingData {
	basePrice := formation.Price
	if session.Price != nil {
		basePrice = *session.Price
	}

	data := BillingData{
		BasePrice:       roundCents(basePrice),
		OptionsDetails:  []string{},
		AdminAdjustment: roundCents(adminAdjustment),
	}
	data.FinalPrice = roundCents(data.BasePrice + data.DistanceFee + data.OptionsFee + data.AdminAdjustment)
	return data
}

func (b BillingData) Encode() (string, error) {
	encoded, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func roundCents(value float64) float64 {
	return math.Round(value*100) / 100
}
