package publish

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/internal/testutil"
)

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widget")
	require.NoError(t, os.WriteFile(path, []byte("widget-binary"), 0644))
	sum := testutil.SHA1("widget-binary")

	assert.NoError(t, VerifyChecksum(path, sum))
	assert.NoError(t, VerifyChecksum(path, strings.ToUpper(sum)), "hex comparison ignores case")

	err := VerifyChecksum(path, testutil.SHA1("something else"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrChecksumMismatch))
	assert.True(t, errors.IsClientError(err))

	err = VerifyChecksum(filepath.Join(t.TempDir(), "missing"), sum)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
	assert.False(t, errors.IsClientError(err))
}

func TestFileSHA1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	sum, err := FileSHA1(path)
	require.NoError(t, err)
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", sum)
}
