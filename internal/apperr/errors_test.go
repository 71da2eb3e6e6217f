package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap(ErrJobAlreadySaved, "SaveJobForUser", "user-1", "job-9", nil)

	assert.ErrorIs(t, err, ErrJobAlreadySaved)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Contains(t, err.Error(), "user-1")
	assert.Contains(t, err.Error(), "job-9")
}

func TestWrapMatchesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrStorageUnavailable, "DeleteObject", "user-1", "", cause)

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("boom")))
}

func TestPublicMessage(t *testing.T) {
	err := fmt.Errorf("外层: %w", Wrap(ErrResumeEmbeddingsNotFound, "MatchJobsForUser", "user-1", "", nil))
	assert.Equal(t, ErrResumeEmbeddingsNotFound.Message, PublicMessage(err))

	// 非本包错误不暴露内部细节
	assert.Equal(t, "内部错误", PublicMessage(errors.New("panic: nil pointer")))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"NotFound", Wrap(ErrUserNotFound, "op", "u", "", nil), http.StatusNotFound},
		{"Conflict", Wrap(ErrStaleAssetConflict, "op", "u", "", nil), http.StatusConflict},
		{"Validation", Wrap(ErrInvalidSearchParameters, "op", "u", "", nil), http.StatusBadRequest},
		{"Upstream", Wrap(ErrIndexUnavailable, "op", "u", "", nil), http.StatusBadGateway},
		{"Inconsistency", Wrap(ErrDataInconsistency, "op", "u", "", nil), http.StatusInternalServerError},
		{"Foreign", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}
