package pkg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"token expired", ErrTokenExpired, KindAuthExpired},
		{"unauthorized", ErrUnauthorized, KindAuthInvalid},
		{"forbidden", ErrForbidden, KindUnauthorized},
		{"not found", ErrNotFound, KindNotFound},
		{"already exists", ErrAlreadyExists, KindConflict},
		{"bad request", ErrBadRequest, KindValidation},
		{"rate limited", ErrRateLimited, KindRateLimited},
		{"blocked", ErrBlocked, KindBlocked},
		{"unknown error", errors.New("boom"), KindInternal},
		{"internal", ErrInternal, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

// Service katmanı sentinel'leri fmt.Errorf("%w: ...") ile wrap'ler —
// kind çözümü wrap'ten etkilenmemeli.
func TestKindWrapped(t *testing.T) {
	err := fmt.Errorf("%w: missing permission", ErrForbidden)
	assert.Equal(t, KindUnauthorized, Kind(err))

	err = fmt.Errorf("%w: %s", ErrBadRequest, "channelId is required")
	assert.Equal(t, KindValidation, Kind(err))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrTokenExpired))
	assert.True(t, IsFatal(ErrUnauthorized))
	assert.True(t, IsFatal(fmt.Errorf("%w: invalid credentials", ErrUnauthorized)))

	assert.False(t, IsFatal(ErrForbidden))
	assert.False(t, IsFatal(ErrNotFound))
	assert.False(t, IsFatal(ErrRateLimited))
	assert.False(t, IsFatal(errors.New("boom")))
}
