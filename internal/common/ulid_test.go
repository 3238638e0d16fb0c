package common

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestNewULID_SortsByTime(t *testing.T) {
	a, err := NewULID()
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := NewULID()
	require.NoError(t, err)

	require.Len(t, a, 26)
	require.Less(t, a, b)

	_, err = ulid.ParseStrict(a)
	require.NoError(t, err)
}
