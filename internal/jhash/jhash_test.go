package jhash_test

import (
	"testing"

	"github.com/jitterbench/jitterbench/internal/jhash"
	"github.com/stretchr/testify/require"
)

func TestAwareHash_DeterministicSequence(t *testing.T) {
	jhash.ResetGlobalSeedCounter()
	first := jhash.NewAwareHash()

	jhash.ResetGlobalSeedCounter()
	second := jhash.NewAwareHash()

	require.True(t, first.Equal(second), "k-th default-constructed AwareHash must be identical across runs")
	require.Equal(t, first.Hash([]byte("packet")), second.Hash([]byte("packet")))
}

func TestAwareHash_WrapsAtEighteen(t *testing.T) {
	jhash.ResetGlobalSeedCounter()
	var seq []jhash.AwareHash
	for i := 0; i < 18; i++ {
		seq = append(seq, jhash.NewAwareHash())
	}
	wrapped := jhash.NewAwareHash()

	jhash.ResetGlobalSeedCounter()
	first := jhash.NewAwareHash()

	require.True(t, wrapped.Equal(first), "counter must wrap at 18")
}

func TestBOBHash32_Deterministic(t *testing.T) {
	jhash.ResetGlobalSaltCounter()
	h1 := jhash.NewBOBHash32()
	jhash.ResetGlobalSaltCounter()
	h2 := jhash.NewBOBHash32()

	require.Equal(t, h1.Hash([]byte("abc")), h2.Hash([]byte("abc")))
}

func TestBOBHash32_DifferentSaltsDifferentHashes(t *testing.T) {
	jhash.ResetGlobalSaltCounter()
	h1 := jhash.NewBOBHash32()
	h2 := jhash.NewBOBHash32()

	require.NotEqual(t, h1.Hash([]byte("abc")), h2.Hash([]byte("abc")))
}

func TestBOBHash32_EmptyInput(t *testing.T) {
	jhash.ResetGlobalSaltCounter()
	h := jhash.NewBOBHash32()
	// Must not panic on zero-length input.
	_ = h.Hash(nil)
}
