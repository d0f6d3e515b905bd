package imagedrop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDataURI(t *testing.T) {
	assert.Equal(t, "data:image/gif;base64,R0lGODlh", EncodeDataURI("image/gif", []byte("GIF89a")))
	assert.Equal(t, "data:application/octet-stream;base64,", EncodeDataURI("", nil))
}

func TestDataURIDecoder(t *testing.T) {
	uri, err := DataURIDecoder{}.Decode(context.Background(), &memBlob{mime: "image/png", data: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, pngDataURI(), uri)
}

func TestDataURIDecoder_OpenError(t *testing.T) {
	_, err := DataURIDecoder{}.Decode(context.Background(), &memBlob{mime: "image/png", openErr: errBoom})
	assert.ErrorIs(t, err, errBoom)
}

func TestDataURIDecoder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DataURIDecoder{}.Decode(ctx, &memBlob{mime: "image/png", data: pngBytes})
	assert.ErrorIs(t, err, context.Canceled)
}
