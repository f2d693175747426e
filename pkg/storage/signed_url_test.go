package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("doc-1", "c1/doc-1.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	fileID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "doc-1", fileID)
	require.Equal(t, "c1/doc-1.pdf", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("doc-1", "c1/doc-1.pdf")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	fileID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "doc-1", fileID)
	require.Equal(t, "c1/doc-1.pdf", path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("doc-1", "c1/doc-1.pdf")
	require.NoError(t, err)

	// Swapping the file identifier invalidates the signature.
	parts := strings.SplitN(token, ".", 2)
	forged := "doc-2." + parts[1]
	_, _, _, err = signer.Parse(forged, false)
	require.Error(t, err)

	// A token from another deployment's secret is rejected too.
	other := NewSignedURLSigner("different", time.Hour)
	foreign, _, err := other.Generate("doc-1", "c1/doc-1.pdf")
	require.NoError(t, err)
	_, _, _, err = signer.Parse(foreign, false)
	require.Error(t, err)
}
