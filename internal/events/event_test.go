package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOp_String(t *testing.T) {
	require.Equal(t, "put", OpPut.String())
	require.Equal(t, "delete", OpDelete.String())
	require.Equal(t, "erase", OpErase.String())
	require.Equal(t, "unknown", Op(99).String())
}
