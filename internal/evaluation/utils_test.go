package evaluation_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thanh913/MOOJ/internal/evaluation"
)

const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func TestGenerateErrorIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := evaluation.GenerateErrorID()
		require.True(t, strings.HasPrefix(id, "err-"))
		seen[id] = struct{}{}
	}
	require.Len(t, seen, 100)
}

func TestIsValidJustification(t *testing.T) {
	require.False(t, evaluation.IsValidJustification("  ok  "))
	require.True(t, evaluation.IsValidJustification("by lemma 1"))
}

func TestDecodeImage(t *testing.T) {
	_, mime, err := evaluation.DecodeImage(tinyPNG)
	require.NoError(t, err)
	require.Equal(t, "image/png", mime)

	url, err := evaluation.ImageDataURL("data:image/jpeg;base64," + tinyPNG)
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,"+tinyPNG, url)

	_, _, err = evaluation.DecodeImage("%%%")
	require.ErrorIs(t, err, evaluation.ErrInvalidImage)

	_, _, err = evaluation.DecodeImage(base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 not an image")))
	require.ErrorIs(t, err, evaluation.ErrInvalidImage)
}
