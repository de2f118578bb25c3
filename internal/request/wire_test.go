package request

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWireTranslationRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	managerID := uuid.New()
	req := validVacation()
	req.ID = uuid.New()
	req.Status = StatusApproved
	req.RequestDate = now
	req.ApprovalDate = &now
	req.ManagerID = &managerID
	req.Notes = "viagem em família"

	w := toWire(req)
	require.Equal(t, "aprovado", w.Status)
	require.Equal(t, "ferias", w.Tipo)
	require.NotNil(t, w.Fracao)
	require.Equal(t, "15-15", *w.Fracao)
	require.Equal(t, "2026-01-05", w.StartDate)

	back, err := w.toEntity()
	require.NoError(t, err)
	require.Equal(t, req, back)
}

func TestWireAbsenceCarriesNoFraction(t *testing.T) {
	req := validVacation()
	req.Kind = KindAbsence
	req.FractionType = ""
	w := toWire(req)
	require.Equal(t, "ausencia", w.Tipo)
	require.Nil(t, w.Fracao)
	require.Nil(t, w.Motivo)
}

func TestWireStatusNames(t *testing.T) {
	cases := map[Status]string{
		StatusPending:  "pendente",
		StatusApproved: "aprovado",
		StatusRejected: "rejeitado",
		StatusNotified: "rh_notificado",
	}
	for status, wire := range cases {
		got, err := statusToWire(status)
		require.NoError(t, err)
		require.Equal(t, wire, got)
		back, err := statusFromWire(wire)
		require.NoError(t, err)
		require.Equal(t, status, back)
	}
}

func TestWireRejectsUnknownValues(t *testing.T) {
	_, err := statusFromWire("cancelado")
	require.Error(t, err)
	_, err = kindFromWire("licenca")
	require.Error(t, err)
	_, err = statusToWire(Status("held"))
	require.Error(t, err)

	w := toWire(validVacation())
	w.Status = "cancelado"
	_, err = w.toEntity()
	require.Error(t, err)

	w = toWire(validVacation())
	w.StartDate = "05/01/2026"
	_, err = w.toEntity()
	require.ErrorContains(t, err, "parse start date")
}
