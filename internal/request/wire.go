package request

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// The persistent store keeps its own naming for enums and columns. The
// adapter owns the translation; nothing outside this package sees the wire
// names.
const (
	wireStatusPending  = "pendente"
	wireStatusApproved = "aprovado"
	wireStatusRejected = "rejeitado"
	wireStatusNotified = "rh_notificado"

	wireKindVacation = "ferias"
	wireKindAbsence  = "ausencia"
)

// wireRequest mirrors a solicitacoes row as carried on the change feed.
type wireRequest struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	EmployeeName string     `json:"employee_name,omitempty"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date"`
	Days         int        `json:"days"`
	Tipo         string     `json:"tipo"`
	Fracao       *string    `json:"fracao,omitempty"`
	Motivo       *string    `json:"motivo,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApprovedBy   *uuid.UUID `json:"approved_by,omitempty"`
}

func statusToWire(s Status) (string, error) {
	switch s {
	case StatusPending:
		return wireStatusPending, nil
	case StatusApproved:
		return wireStatusApproved, nil
	case StatusRejected:
		return wireStatusRejected, nil
	case StatusNotified:
		return wireStatusNotified, nil
	}
	return "", fmt.Errorf("request: unknown status %q", s)
}

func statusFromWire(s string) (Status, error) {
	switch s {
	case wireStatusPending:
		return StatusPending, nil
	case wireStatusApproved:
		return StatusApproved, nil
	case wireStatusRejected:
		return StatusRejected, nil
	case wireStatusNotified:
		return StatusNotified, nil
	}
	return "", fmt.Errorf("request: unknown wire status %q", s)
}

func kindToWire(k Kind) (string, error) {
	switch k {
	case KindVacation:
		return wireKindVacation, nil
	case KindAbsence:
		return wireKindAbsence, nil
	}
	return "", fmt.Errorf("request: unknown kind %q", k)
}

func kindFromWire(s string) (Kind, error) {
	switch s {
	case wireKindVacation:
		return KindVacation, nil
	case wireKindAbsence:
		return KindAbsence, nil
	}
	return "", fmt.Errorf("request: unknown wire tipo %q", s)
}

func toWire(req Request) wireRequest {
	w := wireRequest{
		ID:           req.ID,
		UserID:       req.EmployeeID,
		EmployeeName: req.EmployeeName,
		StartDate:    req.StartDate.UTC().Format(DateLayout),
		EndDate:      req.EndDate.UTC().Format(DateLayout),
		Days:         req.Days,
		CreatedAt:    req.RequestDate,
		ApprovedAt:   req.ApprovalDate,
		ApprovedBy:   req.ManagerID,
	}
	// Enum translation failures cannot happen for an entity that passed
	// Validate; fall back to the raw value to keep the feed flowing.
	if tipo, err := kindToWire(req.Kind); err == nil {
		w.Tipo = tipo
	} else {
		w.Tipo = string(req.Kind)
	}
	if status, err := statusToWire(req.Status); err == nil {
		w.Status = status
	} else {
		w.Status = string(req.Status)
	}
	if req.Kind == KindVacation && req.FractionType != "" {
		f := string(req.FractionType)
		w.Fracao = &f
	}
	if req.Notes != "" {
		w.Motivo = &req.Notes
	}
	return w
}

func (w wireRequest) toEntity() (Request, error) {
	start, err := time.ParseInLocation(DateLayout, w.StartDate, time.UTC)
	if err != nil {
		return Request{}, fmt.Errorf("request: parse start date: %w", err)
	}
	end, err := time.ParseInLocation(DateLayout, w.EndDate, time.UTC)
	if err != nil {
		return Request{}, fmt.Errorf("request: parse end date: %w", err)
	}
	kind, err := kindFromWire(w.Tipo)
	if err != nil {
		return Request{}, err
	}
	status, err := statusFromWire(w.Status)
	if err != nil {
		return Request{}, err
	}
	req := Request{
		ID:           w.ID,
		EmployeeID:   w.UserID,
		EmployeeName: w.EmployeeName,
		StartDate:    start,
		EndDate:      end,
		Days:         w.Days,
		Kind:         kind,
		Status:       status,
		RequestDate:  w.CreatedAt,
		ApprovalDate: w.ApprovedAt,
		ManagerID:    w.ApprovedBy,
	}
	if w.Fracao != nil {
		req.FractionType = FractionType(*w.Fracao)
	}
	if w.Motivo != nil {
		req.Notes = *w.Motivo
	}
	return req, nil
}
