package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProgressNotifier_ThrottlesInterimNotices(t *testing.T) {
	messenger := newFakeMessenger()
	n, err := newProgressNotifier(context.Background(), messenger, 100, time.Hour, zap.NewNop())
	require.NoError(t, err)

	// Inside the interval: dropped.
	n.Notify(context.Background(), "📝 Generating appropriate database query...")
	assert.Len(t, messenger.sent, 1)

	// Finish is never throttled.
	require.NoError(t, n.Finish(context.Background(), "done"))
	assert.Equal(t, "done", messenger.lastText())
}

func TestProgressNotifier_DropsDuplicateText(t *testing.T) {
	messenger := newFakeMessenger()
	n, err := newProgressNotifier(context.Background(), messenger, 100, 0, zap.NewNop())
	require.NoError(t, err)

	n.lastEdit = time.Now().Add(-time.Second)
	n.Notify(context.Background(), "🔍 Checking your question...")
	assert.Len(t, messenger.sent, 1)

	n.Notify(context.Background(), "📊 Analyzing results to provide you an answer...")
	assert.Len(t, messenger.sent, 2)
}
