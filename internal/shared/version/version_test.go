package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "v1.2.3", Normalize("1.2.3"))
	assert.Equal(t, "v1.2.3", Normalize(" v1.2.3 "))
}

func TestIsRelease(t *testing.T) {
	assert.True(t, IsRelease("1.4.0"))
	assert.True(t, IsRelease("v2.0.1"))
	assert.False(t, IsRelease("v2.0.1-rc.1"))
	assert.False(t, IsRelease("dev"))
}

func TestString(t *testing.T) {
	oldCurrent, oldCommit := Current, Commit
	t.Cleanup(func() { Current, Commit = oldCurrent, oldCommit })

	Current, Commit = "1.2", ""
	assert.Equal(t, "v1.2.0", String())

	Current, Commit = "dev", "abc123"
	assert.Equal(t, "dev (abc123)", String())
}
