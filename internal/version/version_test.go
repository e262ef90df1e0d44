package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFull(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Commit)

	full := Full()
	assert.Contains(t, full, Version)
	assert.Contains(t, full, runtime.GOOS+"/"+runtime.GOARCH)
}
