package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", Transient(errors.New("x"), 503), true},
		{"wrapped", fmt.Errorf("call: %w", Transient(errors.New("x"), 429)), true},
		{"conn reset", fmt.Errorf("post: %w", syscall.ECONNRESET), true},
		{"refused", syscall.ECONNREFUSED, true},
		{"message", errors.New("read tcp: i/o timeout"), true},
		{"permanent", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError("llamacpp", 503, "loading model")
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "status 503")

	err = StatusError("llamacpp", 400, "bad prompt")
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "bad prompt")
}

func TestTransientNil(t *testing.T) {
	assert.NoError(t, Transient(nil, 500))
}
