package handler

import (
	returnsapp "github.com/returnflow/backend/internal/application/returns"
	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/shopspring/decimal"
)

// CreateReturnRecordRequest is a logistics intake line
type CreateReturnRecordRequest struct {
	DocumentNo   string               `json:"documentNo" binding:"required_without=RefNo,max=64"`
	RefNo        string               `json:"refNo" binding:"max=64"`
	ProductCode  string               `json:"productCode" binding:"required_without=ProductName,max=64"`
	ProductName  string               `json:"productName" binding:"max=255"`
	Quantity     decimal.Decimal      `json:"quantity"`
	Unit         string               `json:"unit" binding:"max=32"`
	Customer     string               `json:"customer" binding:"max=255"`
	Branch       string               `json:"branch" binding:"max=100"`
	Destination  string               `json:"destination" binding:"max=255"`
	Founder      string               `json:"founder" binding:"max=100"`
	PricePerUnit decimal.Decimal      `json:"pricePerUnit"`
	PriceBill    decimal.Decimal      `json:"priceBill"`
	Problems     returns.ProblemFlags `json:"problems"`
	Cost         returns.CostInfo     `json:"cost"`
	Notes        string               `json:"notes"`
	Date         string               `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Submit       bool                 `json:"submit"`
}

func (r CreateReturnRecordRequest) toInput() returnsapp.CreateRecordInput {
	return returnsapp.CreateRecordInput{
		DocumentNo:   r.DocumentNo,
		RefNo:        r.RefNo,
		ProductCode:  r.ProductCode,
		ProductName:  r.ProductName,
		Quantity:     r.Quantity,
		Unit:         r.Unit,
		Customer:     r.Customer,
		Branch:       r.Branch,
		Destination:  r.Destination,
		Founder:      r.Founder,
		PricePerUnit: r.PricePerUnit,
		PriceBill:    r.PriceBill,
		Problems:     r.Problems,
		Cost:         r.Cost,
		Notes:        r.Notes,
		Date:         r.Date,
		Submit:       r.Submit,
	}
}

// UpdateReturnRecordRequest changes intake content fields; absent fields stay as they are
type UpdateReturnRecordRequest struct {
	DocumentNo   *string          `json:"documentNo" binding:"omitempty,min=1,max=64"`
	ProductCode  *string          `json:"productCode" binding:"omitempty,max=64"`
	ProductName  *string          `json:"productName" binding:"omitempty,max=255"`
	Quantity     *decimal.Decimal `json:"quantity"`
	Unit         *string          `json:"unit" binding:"omitempty,max=32"`
	Customer     *string          `json:"customer" binding:"omitempty,max=255"`
	Branch       *string          `json:"branch" binding:"omitempty,max=100"`
	Destination  *string          `json:"destination" binding:"omitempty,max=255"`
	PricePerUnit *decimal.Decimal `json:"pricePerUnit"`
	PriceBill    *decimal.Decimal `json:"priceBill"`
	Notes        *string          `json:"notes"`
	ControlDate  *string          `json:"controlDate" binding:"omitempty,datetime=2006-01-02"`
}

func (r UpdateReturnRecordRequest) toInput() returnsapp.UpdateRecordInput {
	return returnsapp.UpdateRecordInput{
		DocumentNo:   r.DocumentNo,
		ProductCode:  r.ProductCode,
		ProductName:  r.ProductName,
		Quantity:     r.Quantity,
		Unit:         r.Unit,
		Customer:     r.Customer,
		Branch:       r.Branch,
		Destination:  r.Destination,
		PricePerUnit: r.PricePerUnit,
		PriceBill:    r.PriceBill,
		Notes:        r.Notes,
		ControlDate:  r.ControlDate,
	}
}

// TransitionRequest applies a lifecycle action to a record
type TransitionRequest struct {
	Action         string `json:"action" binding:"required,return_action"`
	ExpectedStatus string `json:"expectedStatus" binding:"required,return_status"`
}

// UndoRequest reverts a record one step
type UndoRequest struct {
	ExpectedStatus string `json:"expectedStatus" binding:"required,return_status"`
}

// DispositionRequest sets post-inspection routing
type DispositionRequest struct {
	Disposition string `json:"disposition" binding:"required,disposition"`
}

// SplitRequest divides a record into lines with the given quantities
type SplitRequest struct {
	Quantities []decimal.Decimal `json:"quantities" binding:"required,min=2"`
}

// CollectionOrderRequest schedules records for one pickup
type CollectionOrderRequest struct {
	RecordIDs []string `json:"recordIds" binding:"required,min=1,dive,required"`
}

// ListReturnRecordsQuery filters the record listing
type ListReturnRecordsQuery struct {
	Status     string `form:"status" binding:"omitempty,return_status"`
	DocumentNo string `form:"documentNo"`
	NCRNumber  string `form:"ncrNumber"`
}
