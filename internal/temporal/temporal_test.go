package temporal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const maxTime = int64(1<<63 - 1)

func TestResolve_At(t *testing.T) {
	b := Resolve(At(100), maxTime)
	require.Equal(t, Bound{Lo: 100, Hi: 101}, b)
	require.True(t, b.Overlaps(50, 101), "row starting before t and ending just after t is visible at t")
	require.False(t, b.Overlaps(50, 100), "row ending exactly at t is not visible at t (half-open)")
}

func TestResolve_In(t *testing.T) {
	b := Resolve(In(100, 200), maxTime)
	require.Equal(t, Bound{Lo: 100, Hi: 200}, b)
	require.True(t, b.Overlaps(150, 160))
	require.False(t, b.Overlaps(200, 300), "row starting exactly at the IN upper bound does not overlap")
}

func TestResolve_Between(t *testing.T) {
	b := Resolve(Between(100, 200), maxTime)
	require.Equal(t, Bound{Lo: 100, Hi: 201}, b)
	require.True(t, b.Overlaps(200, 201), "BETWEEN is inclusive of its upper bound")
}

func TestResolve_AllTime(t *testing.T) {
	b := Resolve(AllTime(), maxTime)
	require.Equal(t, Bound{Lo: MinTime, Hi: maxTime}, b)
	require.True(t, b.Overlaps(0, maxTime))
}

func TestDefaultSystemTime_IsPointContainmentAtBasis(t *testing.T) {
	b := DefaultSystemTime(1000)
	require.True(t, b.Overlaps(-5000, 1001), "an event far in the past, still live at the basis, is visible")
	require.False(t, b.Overlaps(1001, maxTime), "an event committed after the basis is not yet visible")
	require.False(t, b.Overlaps(-5000, 1000), "an event already superseded at the basis is not visible, however old it is")
}

func TestDefaultValidTime_IsAPoint(t *testing.T) {
	b := DefaultValidTime(500)
	require.Equal(t, Bound{Lo: 500, Hi: 501}, b)
}
