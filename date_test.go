package jesfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatTime_UnknownSentinel(t *testing.T) {
	require.Equal(t, "unknown", FormatTime(unknownTime))
}

func TestFormatTime_KnownValue(t *testing.T) {
	// 2023-11-14 22:13:20 UTC
	require.Equal(t, "2023-11-14 22:13:20", FormatTime(1700000000))
}

func TestNowSeconds_Monotonic(t *testing.T) {
	a := nowSeconds()
	b := nowSeconds()
	require.LessOrEqual(t, a, b)
}
