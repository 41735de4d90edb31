// FILE: ./internal/browser/cdp/context_utils_test.go

package cdp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestCombineContext(t *testing.T) {
	t.Run("operation deadline cancels the combined context", func(t *testing.T) {
		session := context.WithValue(context.Background(), ctxKey{}, "tab")
		op, cancelOp := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancelOp()

		combined, cancel := CombineContext(session, op)
		defer cancel()

		assert.Equal(t, "tab", combined.Value(ctxKey{}))
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled")
		}
		assert.ErrorIs(t, context.Cause(combined), context.DeadlineExceeded)
	})

	t.Run("session cancellation cancels the combined context", func(t *testing.T) {
		session, cancelSession := context.WithCancel(context.Background())
		combined, cancel := CombineContext(session, context.Background())
		defer cancel()

		cancelSession()
		<-combined.Done()
		require.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("cancel releases the link", func(t *testing.T) {
		op, cancelOp := context.WithCancel(context.Background())
		defer cancelOp()
		combined, cancel := CombineContext(context.Background(), op)
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
		assert.NoError(t, op.Err())
	})
}
