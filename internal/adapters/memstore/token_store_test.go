package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreFactory(t *testing.T) {
	ctx := context.Background()
	f := NewTokenStoreFactory()

	a := f.ForVisitor("a")
	assert.Empty(t, a.Get(ctx))
	require.NoError(t, a.Set(ctx, "TA"))
	require.NoError(t, f.ForVisitor("b").Set(ctx, "TB"))

	assert.Equal(t, "TA", f.ForVisitor("a").Get(ctx))
	assert.Equal(t, 2, f.Len())

	require.NoError(t, a.Set(ctx, ""))
	require.NoError(t, a.Set(ctx, ""))
	assert.Empty(t, a.Get(ctx))
	assert.Equal(t, 1, f.Len())
}
