package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Key   string
	Value string
	Count int
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sample{Key: "k", Value: "v", Count: 7}

	b, err := Encode(&in)
	require.NoError(t, err)
	require.NotEmpty(t, b)

	var out sample
	require.NoError(t, Decode(b, &out))
	require.Equal(t, in, out)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var out sample
	err := Decode([]byte("not a gob stream"), &out)
	require.Error(t, err)
}

func TestEncodeEmptyStruct(t *testing.T) {
	in := sample{}
	b, err := Encode(&in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, Decode(b, &out))
	require.Equal(t, in, out)
}
