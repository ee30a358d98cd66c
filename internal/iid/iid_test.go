package iid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOfAny_Equality(t *testing.T) {
	a, err := OfAny("42")
	require.NoError(t, err)
	b, err := OfAny("42")
	require.NoError(t, err)
	require.Equal(t, a, b, "equal user ids must map to equal iids")

	c, err := OfAny(int64(42))
	require.NoError(t, err)
	require.NotEqual(t, a, c, "string \"42\" and int 42 must not collide")
}

func TestOfUUID(t *testing.T) {
	u := uuid.New()
	a := OfUUID(u)
	b := OfUUID(u)
	require.Equal(t, a, b)
}

func TestCompareToPath_PrefixMatch(t *testing.T) {
	id := OfString("entity-1")
	var path Path
	for i := 0; i < 5; i++ {
		path = append(path, id.Nibble(i))
	}
	require.Equal(t, 0, CompareToPath(id, path))
}

func TestCompareToPath_Mismatch(t *testing.T) {
	id := OfString("entity-1")
	path := Path{(id.Nibble(0) + 1) % 4}
	require.NotEqual(t, 0, CompareToPath(id, path))
}

func TestPathChild(t *testing.T) {
	var p Path
	p = p.Child(1).Child(2).Child(3)
	require.Equal(t, Path{1, 2, 3}, p)
}

func TestLess(t *testing.T) {
	a := IID{0, 0, 1}
	b := IID{0, 0, 2}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.Equal(t, -1, a.Compare(b))
}
