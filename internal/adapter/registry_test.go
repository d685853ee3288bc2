package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolveUnknownType(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve("nope", "@ch", "ch", nil)
	assert.ErrorIs(t, err, ErrUnknownSourceType)
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register("basic_text", NewBasicText))
	err := reg.Register("basic_text", NewBasicText)
	assert.ErrorIs(t, err, ErrDuplicateRegistration)
}

func TestRegistryResolveCachesInstance(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("basic_text", NewBasicText))

	first, err := reg.Resolve("basic_text", "@news", "news", &Options{})
	require.NoError(t, err)

	// No new options: the cached instance must come back.
	second, err := reg.Resolve("basic_text", "@news", "news", nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// New options replace the cached instance.
	third, err := reg.Resolve("basic_text", "@news", "news", &Options{Keywords: []string{"ai"}})
	require.NoError(t, err)
	assert.NotSame(t, first, third)

	fourth, err := reg.Resolve("basic_text", "@news", "news", nil)
	require.NoError(t, err)
	assert.Same(t, third, fourth)
}

func TestRegistryListAndActive(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("basic_text", NewBasicText))

	assert.Equal(t, []string{"basic_text"}, reg.ListRegistered())
	assert.Empty(t, reg.ActiveChannels())

	_, err := reg.Resolve("basic_text", "@a", "a", &Options{})
	require.NoError(t, err)
	_, err = reg.Resolve("basic_text", "@b", "b", &Options{})
	require.NoError(t, err)

	assert.Len(t, reg.ActiveChannels(), 2)
}

func TestRegistryDeactivateKeepsType(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("basic_text", NewBasicText))
	_, err := reg.Resolve("basic_text", "@news", "news", &Options{})
	require.NoError(t, err)

	assert.True(t, reg.Deactivate("news"))
	assert.False(t, reg.Deactivate("news"))
	assert.Empty(t, reg.ActiveChannels())

	// The source type survives deactivation.
	_, err = reg.Resolve("basic_text", "@news", "news", &Options{})
	assert.NoError(t, err)
}

func TestRegistryUnregisterKeepsInstances(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("basic_text", NewBasicText))
	_, err := reg.Resolve("basic_text", "@news", "news", &Options{})
	require.NoError(t, err)

	assert.True(t, reg.Unregister("basic_text"))
	assert.False(t, reg.Unregister("basic_text"))

	// The live instance keeps working; new resolves of the type do not.
	assert.Len(t, reg.ActiveChannels(), 1)
	_, err = reg.Resolve("basic_text", "@other", "other", &Options{})
	assert.ErrorIs(t, err, ErrUnknownSourceType)
}

func TestRegistryRemoveEvictsBoth(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("news", NewBasicText))
	_, err := reg.Resolve("news", "@news", "news", &Options{})
	require.NoError(t, err)

	assert.True(t, reg.Remove("news"))
	assert.Empty(t, reg.ActiveChannels())
	assert.Empty(t, reg.ListRegistered())
	assert.False(t, reg.Remove("news"))
}

func TestDiscoverRegistersBuiltins(t *testing.T) {
	reg := NewRegistry()

	discovered, errs := Discover(reg)
	assert.Empty(t, errs)
	assert.Contains(t, discovered, SourceTypeBasicText)
	assert.Contains(t, reg.ListRegistered(), SourceTypeBasicText)
}

func TestDiscoverSkipsFailingEntries(t *testing.T) {
	reg := NewRegistry()
	// Occupy the name so the built-in registration fails.
	require.NoError(t, reg.Register(SourceTypeBasicText, NewBasicText))

	discovered, errs := Discover(reg)
	assert.NotContains(t, discovered, SourceTypeBasicText)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrDuplicateRegistration)
}
