package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/warden/internal/platform"
)

var _ platform.Localizer = (*Bundle)(nil)

func TestLookupFormatsAndFallsBack(t *testing.T) {
	b, err := Load("en")
	require.NoError(t, err)
	assert.Contains(t, b.tables, "en")
	assert.Contains(t, b.tables, "zh-TW")

	assert.Equal(t, "A mute can't be longer than 28 days.", b.Lookup(1, "admin.mute.too_long", 28))
	assert.Equal(t, "hour", b.Lookup(1, "admin.unit_hour"))

	require.NoError(t, b.SetLanguage(2, "zh-TW"))
	assert.Equal(t, "小時", b.Lookup(2, "admin.unit_hour"))
	assert.Equal(t, "hour", b.Lookup(1, "admin.unit_hour"))

	assert.Equal(t, "no.such.key", b.Lookup(2, "no.such.key"))
	assert.Error(t, b.SetLanguage(3, "tlh"))
}

func TestUseLocale(t *testing.T) {
	b, err := Load("en")
	require.NoError(t, err)

	assert.True(t, b.UseLocale(1, "zh-TW"))
	assert.Equal(t, "小時", b.Lookup(1, "admin.unit_hour"))

	assert.True(t, b.UseLocale(2, "en-GB"))
	assert.Equal(t, "hour", b.Lookup(2, "admin.unit_hour"))

	assert.False(t, b.UseLocale(1, "fr"))
	assert.Equal(t, "hour", b.Lookup(1, "admin.unit_hour"))

	assert.False(t, b.UseLocale(3, ""))
	assert.Equal(t, "hour", b.Lookup(3, "admin.unit_hour"))
}

func TestTablesShareKeys(t *testing.T) {
	b, err := Load("en")
	require.NoError(t, err)
	for key := range b.tables["en"] {
		_, ok := b.tables["zh-TW"][key]
		assert.True(t, ok, "zh-TW is missing %s", key)
	}
}

func TestUnknownFallback(t *testing.T) {
	_, err := Load("fr")
	assert.Error(t, err)
}
