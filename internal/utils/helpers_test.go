package utils

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc...(truncated)", TruncateString("abcdef", 3))
	assert.Equal(t, "", TruncateString("anything", 0))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", MaskAPIKey("short"))
	masked := MaskAPIKey("sk-1234567890abcdef")
	assert.Equal(t, "sk-1****cdef", masked)
	assert.NotContains(t, masked, "1234567890")
}

func TestDecompressResponse_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("hello"))
	zw.Close()

	out, err := DecompressResponse("gzip", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestDecompressResponse_Brotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	bw.Write([]byte("hello"))
	bw.Close()

	out, err := DecompressResponse("br", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestDecompressResponse_UnknownEncodingPassesThrough(t *testing.T) {
	out, err := DecompressResponse("", []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(out))

	out, err = DecompressResponse("identity", []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(out))
}

func TestDecompressResponse_CorruptGzip(t *testing.T) {
	_, err := DecompressResponse("gzip", []byte("not gzip"))
	assert.Error(t, err)
}
