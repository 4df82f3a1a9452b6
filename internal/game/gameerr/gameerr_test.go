package gameerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndCodeThroughWrapping(t *testing.T) {
	base := Rule("NotYourTurn", "it is not your turn")
	err := fmt.Errorf("play AH: %w", base)

	assert.True(t, errors.Is(err, base))
	assert.Equal(t, KindRule, KindOf(err))
	assert.Equal(t, "NotYourTurn", CodeOf(err))
	assert.Equal(t, "rule_violation", KindOf(err).String())
}

func TestUnclassifiedIsInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Internal", CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		Validation("a", ""): http.StatusBadRequest,
		Rule("b", ""):       http.StatusUnprocessableEntity,
		Conflict("c", ""):   http.StatusConflict,
		NotFound("d", ""):   http.StatusNotFound,
		Forbidden("e", ""):  http.StatusForbidden,
		Internal("f", ""):   http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Code)
	}
}
