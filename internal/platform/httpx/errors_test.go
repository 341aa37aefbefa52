package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/esakrissa/modern-isoner/internal/shared"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.ErrDuplicate, http.StatusConflict},
		{fmt.Errorf("%w: name required", shared.ErrValidation), http.StatusBadRequest},
		{shared.ErrPermissionDenied, http.StatusForbidden},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.code, rec.Code, tc.err.Error())

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		require.Equal(t, tc.code, problem.Status)
	}
}

func TestProblemCarriesTypeURI(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusBadRequest, "Validation Failed", "name required")

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "/problems/validation-failed", problem.Type)
}

func TestRespondConcealedHidesForbiddenRows(t *testing.T) {
	denied := httptest.NewRecorder()
	RespondConcealed(denied, shared.ErrPermissionDenied)

	missing := httptest.NewRecorder()
	RespondConcealed(missing, shared.ErrNotFound)

	require.Equal(t, http.StatusNotFound, denied.Code)
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, denied.Body.String(), missing.Body.String(),
		"a denied row must be indistinguishable from a missing one")
}

func TestRespondConcealedPassesOtherErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondConcealed(rec, fmt.Errorf("%w: bad input", shared.ErrValidation))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
