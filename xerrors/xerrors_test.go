package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))

	base := errors.New("base error")
	wrapped := Wrap(base, "context")
	require.Error(t, wrapped)
	assert.Equal(t, "context: base error", wrapped.Error())
	assert.ErrorIs(t, wrapped, base)
}

func TestWrapf(t *testing.T) {
	assert.NoError(t, Wrapf(nil, "worker %d", 7))

	wrapped := Wrapf(ErrNotFound, "worker %d", 7)
	assert.Equal(t, "worker 7: not found", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestWithCode(t *testing.T) {
	assert.NoError(t, WithCode(nil, "CODE"))

	coded := WithCode(ErrInvalidInput, "worker_id_out_of_range")
	assert.Equal(t, "[worker_id_out_of_range] invalid input", coded.Error())
	assert.Equal(t, "worker_id_out_of_range", GetCode(coded))

	// 再次包装后依然能取出错误码
	wrapped := Wrap(coded, "new snowflake")
	assert.Equal(t, "worker_id_out_of_range", GetCode(wrapped))
	assert.ErrorIs(t, wrapped, ErrInvalidInput)

	assert.Empty(t, GetCode(errors.New("plain")))
}

func TestMust(t *testing.T) {
	assert.Equal(t, 42, Must(42, nil))
	assert.Panics(t, func() { Must(0, errors.New("boom")) })
}

func TestCombine(t *testing.T) {
	assert.NoError(t, Combine(nil, nil))

	e1 := errors.New("first")
	assert.Same(t, e1, Combine(nil, e1))

	e2 := errors.New("second")
	combined := Combine(e1, nil, e2)
	require.Error(t, combined)
	assert.Equal(t, "first (and 1 more errors)", combined.Error())
	assert.ErrorIs(t, combined, e1)
	assert.ErrorIs(t, combined, e2)
}
