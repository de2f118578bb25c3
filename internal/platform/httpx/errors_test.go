package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/descanso-app/descanso/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{fmt.Errorf("bad days: %w", shared.ErrValidation), http.StatusBadRequest, "Validation Failed"},
		{shared.ErrUnauthorized, http.StatusForbidden, "Forbidden"},
		{fmt.Errorf("request x is aprovado: %w", shared.ErrStaleState), http.StatusConflict, "Stale State"},
		{shared.ErrNotFound, http.StatusNotFound, "Not Found"},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized, "Unauthorized"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.title)

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		require.Equal(t, tc.title, problem.Title)
		require.Equal(t, tc.status, problem.Status)
	}
}
