package memory

import (
	"context"
	"testing"

	"github.com/alvmarrod/profile-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_GetPutDelete(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	value := []byte("v1")
	require.NoError(t, kv.Put(ctx, "k", value))
	value[0] = 'x' // caller mutation must not leak in

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	got[0] = 'y'
	again, _ := kv.Get(ctx, "k")
	assert.Equal(t, "v1", string(again))
	assert.Equal(t, 1, kv.Len())

	require.NoError(t, kv.Delete(ctx, "k"))
	require.NoError(t, kv.Delete(ctx, "k"))
	assert.Equal(t, 0, kv.Len())
}
