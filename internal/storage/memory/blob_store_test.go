package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "snapshots/page.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://snapshots/page.html", uri)

	payload[0] = 'C'
	obj, ok := store.Get("snapshots/page.html")
	require.True(t, ok)
	require.Equal(t, "content", string(obj.Data))
	require.Equal(t, "text/html", obj.ContentType)

	obj.Data[0] = 'X'
	again, _ := store.Get("snapshots/page.html")
	require.Equal(t, "content", string(again.Data))
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), "", "text/html", strings.NewReader("x"))
	require.Error(t, err)
	require.Zero(t, store.Len())

	_, ok := store.Get("missing")
	require.False(t, ok)
}
