package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	tests := []struct {
		name   string
		err    error
		target error
		kind   Kind
	}{
		{name: "validation", err: Validation("class is required"), target: ErrValidation, kind: KindValidation},
		{name: "not found", err: NotFound("student %s not found", "42"), target: ErrNotFound, kind: KindNotFound},
		{name: "auth", err: Auth("missing session"), target: ErrAuth, kind: KindAuth},
		{name: "transport", err: Transport(cause, "query datasiswa"), target: ErrTransport, kind: KindTransport},
		{name: "conflict", err: Conflict("album %s kept changing", "3"), target: ErrConflict, kind: KindConflict},
		{name: "wrapped twice", err: fmt.Errorf("load roster: %w", NotFound("kelas")), target: ErrNotFound, kind: KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.target)
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	err := Validation("bad input")
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrTransport))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestTransportKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := Transport(cause, "upsert presensi")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "upsert presensi: timeout", err.Error())
	assert.Nil(t, Wrap(KindTransport, nil, "noop"))
}
