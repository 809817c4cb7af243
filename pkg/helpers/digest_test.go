package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigest(t *testing.T) {
	t.Parallel()

	d := Digest("123456")
	assert.Len(t, d, 64)
	assert.Equal(t, d, Digest("123456"), "digest must be deterministic")
	assert.NotEqual(t, d, Digest("1234567"))
}

func TestDigestEqual(t *testing.T) {
	t.Parallel()

	stored := Digest("s3cret")
	assert.True(t, DigestEqual(stored, "s3cret"))
	assert.False(t, DigestEqual(stored, "S3cret"))
	assert.False(t, DigestEqual("", "s3cret"))
}
