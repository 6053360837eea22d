package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	require.Len(t, a, 32)
	require.NotEqual(t, a, b)
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	_, ok = FromContext(WithTraceID(context.Background(), ""))
	require.False(t, ok, "empty id is absent")

	id, ok := FromContext(WithTraceID(context.Background(), "abc"))
	require.True(t, ok)
	require.Equal(t, "abc", id)
}
