package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_WithPanic(t *testing.T) {
	fitOne := func() (err error) {
		defer Recover(&err, "RandomizedSearchCV.fitOne")
		panic("index out of range")
	}

	err := fitOne()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "RandomizedSearchCV.fitOne", panicErr.Operation)
	assert.Equal(t, "index out of range", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in RandomizedSearchCV.fitOne: index out of range", panicErr.Error())
	assert.Contains(t, panicErr.String(), "Stack trace:")
	assert.Nil(t, panicErr.Unwrap())
}

func TestRecover_WithoutPanic(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "Evaluate")
		return nil
	}
	assert.NoError(t, fn())
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("refit failed")

	fn := func() (err error) {
		defer Recover(&err, "Evaluate")
		err = original
		panic("after error")
	}

	err := fn()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in Evaluate")
	assert.Contains(t, err.Error(), "original error")
	assert.True(t, errors.Is(err, original))
}

func TestSafeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, SafeExecute("op", func() error { return nil }))
	})

	t.Run("returned error passes through", func(t *testing.T) {
		want := fmt.Errorf("boom")
		assert.Equal(t, want, SafeExecute("op", func() error { return want }))
	})

	t.Run("panic becomes PanicError", func(t *testing.T) {
		err := SafeExecute("permutation_importance", func() error {
			panic("nan target")
		})
		var panicErr *PanicError
		require.True(t, errors.As(err, &panicErr))
		assert.Equal(t, "nan target", panicErr.PanicValue)
		assert.Equal(t, "permutation_importance", panicErr.Operation)
	})
}

func TestRecover_DifferentPanicTypes(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"string", "string panic", "string panic"},
		{"int", 42, "42"},
		{"error", fmt.Errorf("error as panic"), "error as panic"},
		{"nil", nil, "panic called with nil argument"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fn := func() (err error) {
				defer Recover(&err, "TypeTest")
				panic(tc.value)
			}
			var panicErr *PanicError
			require.True(t, errors.As(fn(), &panicErr))
			assert.Contains(t, fmt.Sprintf("%v", panicErr.PanicValue), tc.want)
		})
	}
}

func BenchmarkRecover_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		func() (err error) {
			defer Recover(&err, "BenchmarkOp")
			return nil
		}()
	}
}
