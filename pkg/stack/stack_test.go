package stack

import (
	"testing"

	"github.com/0x264/charon/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestNewAllocatesFullCapacity(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, Cap, len(s.values))
}

func TestCapMeetsMinimumOperandCapacity(t *testing.T) {
	require.GreaterOrEqual(t, Cap, MinOperandCapacity)
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	v := value.Long(42)
	s.Write(10, v)
	require.Equal(t, v, s.Read(10))
}

func TestWriteOverwritesPreviousValue(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	s.Write(0, value.Long(1))
	s.Write(0, value.Long(2))
	require.Equal(t, value.Long(2), s.Read(0))
}

func TestReadAtBoundarySlots(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	s.Write(0, value.Long(1))
	s.Write(Cap-1, value.Long(2))
	require.Equal(t, value.Long(1), s.Read(0))
	require.Equal(t, value.Long(2), s.Read(Cap-1))
}

func TestCloseUnregistersStack(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	registryMu.Lock()
	before := len(registry)
	registryMu.Unlock()

	require.NoError(t, s.Close())

	registryMu.Lock()
	after := len(registry)
	registryMu.Unlock()

	require.Equal(t, before-1, after)
}

func TestMultipleStacksAreIndependent(t *testing.T) {
	s1, err := New()
	require.NoError(t, err)
	defer s1.Close()
	s2, err := New()
	require.NoError(t, err)
	defer s2.Close()

	s1.Write(5, value.Long(100))
	s2.Write(5, value.Long(200))

	require.Equal(t, value.Long(100), s1.Read(5))
	require.Equal(t, value.Long(200), s2.Read(5))
}
