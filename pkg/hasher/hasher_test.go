package hasher

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytes_KnownDigest(t *testing.T) {
	sum, err := HashBytes(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
	assert.Len(t, sum, Size)
	assert.True(t, Valid(sum))
}

func TestHashBytes_IdenticalContent(t *testing.T) {
	content := bytes.Repeat([]byte("illustration"), BlockSize/4)

	first, err := HashBytes(bytes.NewReader(content))
	require.NoError(t, err)
	second, err := HashBytes(bytes.NewReader(append([]byte(nil), content...)))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := HashBytes(bytes.NewReader(append(content, '!')))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestHashFile_MatchesStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, []byte("not really a png"), 0644))

	fromFile, err := HashFile(path)
	require.NoError(t, err)
	fromStream, err := HashBytes(strings.NewReader("not really a png"))
	require.NoError(t, err)
	assert.Equal(t, fromStream, fromFile)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCopy(t *testing.T) {
	var dst bytes.Buffer
	sum, err := Copy(&dst, strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", dst.String())
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid(strings.Repeat("g", Size)))
	assert.False(t, Valid(strings.Repeat("A", Size)))
	assert.True(t, Valid(strings.Repeat("0", Size)))
}
