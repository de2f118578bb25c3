package request

import (
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/descanso-app/descanso/internal/shared"
)

// Severity grades a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notification is a fire-and-forget user-facing message.
type Notification struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Dispatcher delivers a notification to a viewer's notification surface.
// Implementations are owned by the composition root and injected here;
// the bridge itself holds no process-wide state.
type Dispatcher interface {
	Dispatch(viewerID uuid.UUID, n Notification)
}

// Bridge derives role-aware messages from lifecycle events. It is a pure
// mapping; its only side effect is handing the result to the dispatcher.
type Bridge struct {
	dispatcher Dispatcher
	printer    *message.Printer
}

// NewBridge constructs a Bridge. Messages are rendered in pt-BR, matching
// the store's locale.
func NewBridge(dispatcher Dispatcher) *Bridge {
	return &Bridge{
		dispatcher: dispatcher,
		printer:    message.NewPrinter(language.BrazilianPortuguese),
	}
}

// NewRequestArrived notifies a manager-scoped viewer that a new request
// entered their aggregate view.
func (b *Bridge) NewRequestArrived(viewer shared.Identity, req Request) {
	if !viewer.IsManager() {
		return
	}
	b.dispatch(viewer.ID, Notification{
		Message:  b.printer.Sprintf("Nova solicitação de %s (%d dias)", req.EmployeeName, req.Days),
		Severity: SeverityInfo,
	})
}

// OwnRequestDecided notifies the requester that their request left pending.
func (b *Bridge) OwnRequestDecided(viewer shared.Identity, req Request) {
	if viewer.ID != req.EmployeeID {
		return
	}
	b.dispatch(viewer.ID, Notification{
		Message:  b.printer.Sprintf("Sua solicitação foi %s", statusText(req.Status)),
		Severity: SeverityInfo,
	})
}

// Submitted confirms a successful submission to the requester.
func (b *Bridge) Submitted(viewer shared.Identity) {
	b.dispatch(viewer.ID, Notification{
		Message:  b.printer.Sprintf("Solicitação criada com sucesso!"),
		Severity: SeveritySuccess,
	})
}

// DecisionApplied confirms a successful decision to the acting manager.
func (b *Bridge) DecisionApplied(viewer shared.Identity, d Decision) {
	b.dispatch(viewer.ID, Notification{
		Message:  b.printer.Sprintf("Solicitação %s com sucesso!", decisionText(d)),
		Severity: SeveritySuccess,
	})
}

// DecisionConflict tells the acting manager someone else already decided.
func (b *Bridge) DecisionConflict(viewer shared.Identity) {
	b.dispatch(viewer.ID, Notification{
		Message:  b.printer.Sprintf("Outra pessoa já decidiu esta solicitação"),
		Severity: SeverityWarning,
	})
}

func (b *Bridge) dispatch(viewerID uuid.UUID, n Notification) {
	if b == nil || b.dispatcher == nil {
		return
	}
	b.dispatcher.Dispatch(viewerID, n)
}

func statusText(s Status) string {
	switch s {
	case StatusApproved:
		return "aprovada"
	case StatusRejected:
		return "rejeitada"
	default:
		return "atualizada"
	}
}

func decisionText(d Decision) string {
	if d == DecisionReject {
		return "rejeitada"
	}
	return "aprovada"
}

// LogDispatcher writes notifications to the structured log. Used where no
// interactive surface is attached (worker, tests).
type LogDispatcher struct {
	Logger *slog.Logger
}

// Dispatch implements Dispatcher.
func (d LogDispatcher) Dispatch(viewerID uuid.UUID, n Notification) {
	if d.Logger == nil {
		return
	}
	d.Logger.Info("notification",
		slog.String("viewer_id", viewerID.String()),
		slog.String("severity", string(n.Severity)),
		slog.String("message", n.Message))
}
