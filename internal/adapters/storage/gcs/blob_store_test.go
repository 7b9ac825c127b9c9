package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	bucket, key, err := parseRef("gs://brandbot-files/context/tok/1")
	require.NoError(t, err)
	assert.Equal(t, "brandbot-files", bucket)
	assert.Equal(t, "context/tok/1", key)

	for _, bad := range []string{"", "mem://x", "gs://bucket", "gs:///key"} {
		_, _, err := parseRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestDelete_RejectsForeignRef(t *testing.T) {
	err := (&BlobStore{}).Delete(context.Background(), "mem://context/tok/1")
	assert.Error(t, err)
}
