package dto

import (
	"time"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/registers/lot"
)

var lotStatusLabels = map[lot.Status]string{
	lot.StatusActive:   "Active",
	lot.StatusPartial:  "Partially used",
	lot.StatusDepleted: "Depleted",
}

// LotResponse is a lot with its cost as of the request time.
type LotResponse struct {
	*lot.Lot
	StatusLabel    string         `json:"statusLabel"`
	Available      types.Quantity `json:"available"`
	AccruedStorage types.Money    `json:"accruedStorage"`
	RealCostPrice  types.Money    `json:"realCostPrice"`
}

// FromLot wraps l for output, costing it at asOf.
func FromLot(l *lot.Lot, asOf time.Time) LotResponse {
	label, ok := lotStatusLabels[l.Status]
	if !ok {
		label = string(l.Status)
	}
	return LotResponse{
		Lot:            l,
		StatusLabel:    label,
		Available:      l.Available(),
		AccruedStorage: types.RoundMoney(l.AccruedStorage(asOf)),
		RealCostPrice:  l.RealCostPrice(asOf),
	}
}

// LotRequest creates a lot outside any order.
type LotRequest struct {
	ProductID     id.ID           `json:"productId" binding:"required"`
	SpecID        *id.ID          `json:"specId"`
	WarehouseID   id.ID           `json:"warehouseId" binding:"required"`
	SourcePartyID *id.ID          `json:"sourcePartyId"`
	FormulaID     *id.ID          `json:"formulaId"`
	GrossWeight   *types.Quantity `json:"grossWeight"`
	Units         *types.Quantity `json:"units"`
	Quantity      *types.Quantity `json:"quantity"`
	CostPrice     types.Money     `json:"costPrice"`
	FreightCost   types.Money     `json:"freightCost"`
	StorageRate   types.Money     `json:"storageRate"`
	ExtraCost     types.Money     `json:"extraCost"`
	ReceivedAt    *Date           `json:"receivedAt"`
	Notes         string          `json:"notes"`
}

// Params converts the request into service parameters.
func (r LotRequest) Params() lot.ManualParams {
	return lot.ManualParams{
		ProductID:     r.ProductID,
		SpecID:        r.SpecID,
		WarehouseID:   r.WarehouseID,
		SourcePartyID: r.SourcePartyID,
		FormulaID:     r.FormulaID,
		GrossWeight:   r.GrossWeight,
		Units:         r.Units,
		Quantity:      r.Quantity,
		CostPrice:     r.CostPrice,
		FreightCost:   r.FreightCost,
		StorageRate:   r.StorageRate,
		ExtraCost:     r.ExtraCost,
		ReceivedAt:    r.ReceivedAt.Value(),
		Notes:         r.Notes,
	}
}

// LotImportRequest loads opening lots in bulk.
type LotImportRequest struct {
	AsOf  *Date        `json:"asOf"`
	Items []LotRequest `json:"items" binding:"required,min=1,dive"`
}

// LotUpdateRequest edits cost attributes. Absent fields stay unchanged.
type LotUpdateRequest struct {
	StorageRate    *types.Money `json:"storageRate"`
	ExtraCost      *types.Money `json:"extraCost"`
	ExtraCostNotes *string      `json:"extraCostNotes"`
	Notes          *string      `json:"notes"`
}

// Params converts the request into service parameters.
func (r LotUpdateRequest) Params() lot.UpdateParams {
	return lot.UpdateParams{
		StorageRate:    r.StorageRate,
		ExtraCost:      r.ExtraCost,
		ExtraCostNotes: r.ExtraCostNotes,
		Notes:          r.Notes,
	}
}

// LotAdjustRequest sets a counted quantity on a lot.
type LotAdjustRequest struct {
	Quantity types.Quantity `json:"quantity"`
	Reason   string         `json:"reason" binding:"required"`
}
