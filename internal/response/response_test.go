package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rentwise/rentwise/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{model.ErrInvalidField("email", "email"), http.StatusBadRequest, model.CodeInvalidField},
		{model.ErrUnauthenticated(), http.StatusUnauthorized, model.CodeUnauthenticated},
		{model.ErrForbidden(), http.StatusForbidden, model.CodeForbidden},
		{model.ErrNotFound("user"), http.StatusNotFound, model.CodeNotFound},
		{model.ErrDuplicateEntity("email"), http.StatusConflict, model.CodeDuplicateEntity},
		{model.ErrEmptyUpdate(), http.StatusUnprocessableEntity, model.CodeEmptyUpdate},
		{errors.New("disk on fire"), http.StatusInternalServerError, model.CodeInternal},
	}

	for _, test := range tests {
		t.Run(test.code, func(t *testing.T) {
			resp := httptest.NewRecorder()
			Error(resp, httptest.NewRequest(http.MethodGet, "/", nil), test.err)

			assert.Equal(t, test.status, resp.Code)

			var body ErrorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, test.code, body.Error.Code)
			assert.NotContains(t, body.Error.Message, "disk on fire")
		})
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, Decode(req, &v))
	assert.Equal(t, "x", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	err := Decode(req, &v)
	assert.True(t, model.IsCode(err, model.CodeInvalidField))
}
