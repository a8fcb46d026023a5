package returns

import (
	"fmt"

	"github.com/returnflow/backend/internal/domain/shared"
)

// Status is the workflow position of a return record
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusRequested Status = "Requested"

	// Collection/logistics track
	StatusPickupScheduled  Status = "PickupScheduled"
	StatusJobAccepted      Status = "COL_JobAccepted"
	StatusBranchReceived   Status = "COL_BranchReceived"
	StatusConsolidated     Status = "COL_Consolidated"
	StatusColInTransit     Status = "COL_InTransit"
	StatusColHubReceived   Status = "COL_HubReceived"
	StatusReturnToSupplier Status = "ReturnToSupplier"

	// NCR/hub track
	StatusNCRInTransit   Status = "NCR_InTransit"
	StatusNCRHubReceived Status = "NCR_HubReceived"
	StatusQCCompleted    Status = "NCR_QCCompleted"

	StatusCompleted      Status = "Completed"
	StatusDirectReturn   Status = "DirectReturn"
	StatusSettledOnField Status = "Settled_OnField"
	StatusCanceled       Status = "Canceled"
)

// AllStatuses lists every status in workflow order
func AllStatuses() []Status {
	return []Status{
		StatusDraft, StatusRequested,
		StatusPickupScheduled, StatusJobAccepted, StatusBranchReceived, StatusConsolidated,
		StatusColInTransit, StatusColHubReceived, StatusReturnToSupplier,
		StatusNCRInTransit, StatusNCRHubReceived, StatusQCCompleted,
		StatusCompleted, StatusDirectReturn, StatusSettledOnField, StatusCanceled,
	}
}

// IsValid checks if the status is a known Status
func (s Status) IsValid() bool {
	for _, v := range AllStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsInitial reports whether the record has not left intake yet.
// Records in any other status lock their document number.
func (s Status) IsInitial() bool {
	return s == StatusDraft || s == StatusRequested
}

// IsTerminal reports whether no further forward transition exists
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusDirectReturn, StatusSettledOnField, StatusCanceled:
		return true
	}
	return false
}

// AcceptsDisposition reports whether post-inspection routing may be recorded
func (s Status) AcceptsDisposition() bool {
	switch s {
	case StatusQCCompleted, StatusConsolidated, StatusColInTransit, StatusColHubReceived, StatusCompleted:
		return true
	}
	return false
}

// Action is an operator action that moves a record along its track
type Action string

const (
	ActionSubmit           Action = "submit"
	ActionSchedulePickup   Action = "schedule_pickup"
	ActionAcceptJob        Action = "accept_job"
	ActionReceiveAtBranch  Action = "receive_at_branch"
	ActionConsolidate      Action = "consolidate"
	ActionDispatchToHub    Action = "dispatch_to_hub"
	ActionReceiveAtHub     Action = "receive_at_hub"
	ActionReturnToSupplier Action = "return_to_supplier"
	ActionShipNCR          Action = "ship_ncr"
	ActionReceiveNCRAtHub  Action = "receive_ncr_at_hub"
	ActionCompleteQC       Action = "complete_qc"
	ActionComplete         Action = "complete"
	ActionCancel           Action = "cancel"
)

// AllActions lists every action
func AllActions() []Action {
	return []Action{
		ActionSubmit, ActionSchedulePickup, ActionAcceptJob, ActionReceiveAtBranch, ActionConsolidate,
		ActionDispatchToHub, ActionReceiveAtHub, ActionReturnToSupplier, ActionShipNCR,
		ActionReceiveNCRAtHub, ActionCompleteQC, ActionComplete, ActionCancel,
	}
}

// IsValid checks if the action is known
func (a Action) IsValid() bool {
	for _, v := range AllActions() {
		if a == v {
			return true
		}
	}
	return false
}

type edge struct {
	from   Status
	action Action
}

var transitions = map[edge]Status{
	{StatusDraft, ActionSubmit}: StatusRequested,

	{StatusRequested, ActionSchedulePickup}:    StatusPickupScheduled,
	{StatusPickupScheduled, ActionAcceptJob}:   StatusJobAccepted,
	{StatusJobAccepted, ActionReceiveAtBranch}: StatusBranchReceived,
	{StatusBranchReceived, ActionConsolidate}:  StatusConsolidated,
	{StatusConsolidated, ActionDispatchToHub}:  StatusColInTransit,
	{StatusColInTransit, ActionReceiveAtHub}:   StatusColHubReceived,
	{StatusColHubReceived, ActionComplete}:     StatusCompleted,
	{StatusRequested, ActionReturnToSupplier}:  StatusReturnToSupplier,
	{StatusReturnToSupplier, ActionComplete}:   StatusCompleted,

	{StatusRequested, ActionShipNCR}:            StatusNCRInTransit,
	{StatusNCRInTransit, ActionReceiveNCRAtHub}: StatusNCRHubReceived,
	{StatusNCRHubReceived, ActionCompleteQC}:    StatusQCCompleted,
	{StatusQCCompleted, ActionComplete}:         StatusCompleted,
}

// undo maps a status to the one it came from. Statuses missing here cannot be undone.
// Every entry reverses exactly one edge of transitions, so NCR_InTransit and
// PickupScheduled both step back to Requested rather than to JobAccepted.
var undo = map[Status]Status{
	StatusPickupScheduled:  StatusRequested,
	StatusJobAccepted:      StatusPickupScheduled,
	StatusBranchReceived:   StatusJobAccepted,
	StatusConsolidated:     StatusBranchReceived,
	StatusColInTransit:     StatusConsolidated,
	StatusColHubReceived:   StatusColInTransit,
	StatusReturnToSupplier: StatusRequested,
	StatusNCRInTransit:     StatusRequested,
	StatusNCRHubReceived:   StatusNCRInTransit,
	StatusQCCompleted:      StatusNCRHubReceived,
}

// Next returns the status reached by applying action in from
func Next(from Status, action Action) (Status, error) {
	if action == ActionCancel {
		if from.IsTerminal() || !from.IsValid() {
			return "", invalidTransition(from, action)
		}
		return StatusCanceled, nil
	}
	to, ok := transitions[edge{from, action}]
	if !ok {
		return "", invalidTransition(from, action)
	}
	return to, nil
}

// CanApply reports whether action is legal in from
func CanApply(from Status, action Action) bool {
	_, err := Next(from, action)
	return err == nil
}

// Previous returns the status one step back for an undo
func Previous(from Status) (Status, error) {
	prev, ok := undo[from]
	if !ok {
		return "", shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("status %s cannot be undone", from))
	}
	return prev, nil
}

// ActionsFrom returns the actions available in status s
func ActionsFrom(s Status) []Action {
	var out []Action
	for _, a := range AllActions() {
		if CanApply(s, a) {
			out = append(out, a)
		}
	}
	return out
}

func invalidTransition(from Status, action Action) error {
	return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("action %s is not allowed in status %s", action, from))
}

// Disposition is the post-inspection routing category
type Disposition string

const (
	DispositionRestock     Disposition = "Restock"
	DispositionRTV         Disposition = "RTV"
	DispositionClaim       Disposition = "Claim"
	DispositionInternalUse Disposition = "InternalUse"
	DispositionRecycle     Disposition = "Recycle"
	DispositionPending     Disposition = "Pending"
)

// IsValid checks if the disposition is known
func (d Disposition) IsValid() bool {
	switch d {
	case DispositionRestock, DispositionRTV, DispositionClaim, DispositionInternalUse,
		DispositionRecycle, DispositionPending:
		return true
	}
	return false
}

// DocumentType tells where a return record originated
type DocumentType string

const (
	DocumentTypeNCR       DocumentType = "NCR"
	DocumentTypeLogistics DocumentType = "LOGISTICS"
)
