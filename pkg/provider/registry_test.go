package provider

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/esign/pkg/envelope"
)

func TestRegistry_MemoizesAdapters(t *testing.T) {
	r := NewRegistry(nil)

	first, err := r.Adapter(envelope.ProviderMock)
	require.NoError(t, err)
	second, err := r.Adapter(envelope.ProviderMock)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Adapter(envelope.Provider("pandadoc"))
	require.Error(t, err)
}

func TestRegistry_UnconfiguredVendorFails(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Adapter(envelope.ProviderDocuSign)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")

	_, err = r.Adapter(envelope.ProviderDropboxSign)
	require.Error(t, err)
}

func TestRegistry_ConfiguredVendorBuilds(t *testing.T) {
	r := NewRegistry(map[envelope.Provider]Config{
		envelope.ProviderDocuSign: {BaseURL: "https://ds.example.com", APIKey: "key"},
	})
	a, err := r.Adapter(envelope.ProviderDocuSign)
	require.NoError(t, err)
	assert.Equal(t, envelope.ProviderDocuSign, a.Provider())
}

func TestRegistry_RegisterOverridesLazyBuild(t *testing.T) {
	r := NewRegistry(nil)
	mock := NewMock("")
	r.Register(mock)

	a, err := r.Adapter(envelope.ProviderMock)
	require.NoError(t, err)
	assert.Same(t, Adapter(mock), a)
}

func TestRegistry_ConcurrentFirstAccessBuildsOnce(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	adapters := make([]Adapter, 16)
	errs := make([]error, 16)
	for i := range adapters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			adapters[i], errs[i] = r.Adapter(envelope.ProviderMock)
		}(i)
	}
	wg.Wait()

	for i, a := range adapters {
		require.NoError(t, errs[i])
		assert.Same(t, adapters[0], a)
	}
}
