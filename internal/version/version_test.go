package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldV, oldSHA, oldT := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldT })

	Version, GitSHA, BuildTime = "1.2.3", "abc123", "2025-01-01"
	assert.Equal(t, "growthbot 1.2.3 (abc123, built 2025-01-01)", String())
}
