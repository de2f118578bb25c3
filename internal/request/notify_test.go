package request

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/descanso-app/descanso/internal/shared"
)

func TestBridgeNewRequestArrivedManagersOnly(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	bridge := NewBridge(dispatcher)

	req := validVacation()
	employee := shared.Identity{ID: req.EmployeeID, Role: shared.RoleEmployee}
	bridge.NewRequestArrived(employee, req)
	require.Empty(t, dispatcher.forViewer(employee.ID))

	manager := testManager()
	bridge.NewRequestArrived(manager, req)
	notes := dispatcher.forViewer(manager.ID)
	require.Len(t, notes, 1)
	require.Equal(t, SeverityInfo, notes[0].Severity)
	require.Contains(t, notes[0].Message, req.EmployeeName)
	require.Contains(t, notes[0].Message, "15")
}

func TestBridgeOwnRequestDecidedRequesterOnly(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	bridge := NewBridge(dispatcher)

	req := validVacation()
	req.Status = StatusApproved
	requester := shared.Identity{ID: req.EmployeeID, Role: shared.RoleEmployee}
	bystander := testManager()

	bridge.OwnRequestDecided(bystander, req)
	require.Empty(t, dispatcher.forViewer(bystander.ID))

	bridge.OwnRequestDecided(requester, req)
	notes := dispatcher.forViewer(requester.ID)
	require.Len(t, notes, 1)
	require.Contains(t, notes[0].Message, "aprovada")

	req.Status = StatusRejected
	bridge.OwnRequestDecided(requester, req)
	notes = dispatcher.forViewer(requester.ID)
	require.Contains(t, notes[1].Message, "rejeitada")
}

func TestBridgeDecisionConflictWarns(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	bridge := NewBridge(dispatcher)
	manager := testManager()

	bridge.DecisionConflict(manager)
	notes := dispatcher.forViewer(manager.ID)
	require.Len(t, notes, 1)
	require.Equal(t, SeverityWarning, notes[0].Severity)
}

func TestBridgeNilDispatcherIsSafe(t *testing.T) {
	bridge := NewBridge(nil)
	bridge.Submitted(testEmployee())
	bridge.DecisionApplied(testManager(), DecisionApprove)
}

func TestHubDispatchReachesAttachedViewer(t *testing.T) {
	hub := NewHub()
	viewer := uuid.New()
	events, detach := hub.Attach(viewer)
	defer detach()

	hub.Dispatch(viewer, Notification{Message: "olá", Severity: SeverityInfo})
	ev := <-events
	require.Equal(t, StreamNotification, ev.Kind)
	require.NotNil(t, ev.Notification)
	require.Equal(t, "olá", ev.Notification.Message)

	hub.Ping(viewer)
	ev = <-events
	require.Equal(t, StreamSync, ev.Kind)
	require.Nil(t, ev.Notification)
}

func TestHubIsolatesViewers(t *testing.T) {
	hub := NewHub()
	a, detachA := hub.Attach(uuid.New())
	defer detachA()
	viewerB := uuid.New()
	b, detachB := hub.Attach(viewerB)
	defer detachB()

	hub.Ping(viewerB)
	require.Len(t, b, 1)
	require.Empty(t, a)
}

func TestHubDropsWhenConsumerFallsBehind(t *testing.T) {
	hub := NewHub()
	viewer := uuid.New()
	events, detach := hub.Attach(viewer)
	defer detach()

	// Never blocks, even well past the buffer size.
	for i := 0; i < 100; i++ {
		hub.Ping(viewer)
	}
	require.Equal(t, cap(events), len(events))
}

func TestHubDetachStopsDelivery(t *testing.T) {
	hub := NewHub()
	viewer := uuid.New()
	events, detach := hub.Attach(viewer)
	detach()

	hub.Ping(viewer)
	require.Empty(t, events)
}
