package collation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneralLegacyCaseInsensitive(t *testing.T) {
	table := Lookup(GeneralLegacy)
	assert.Equal(t, table.Weight('a'), table.Weight('A'))
	assert.False(t, table.HasAccentTail())
}

func TestGeneralLegacyAccentSensitiveHasTail(t *testing.T) {
	table := Lookup(GeneralLegacyAccentSensitive)
	assert.True(t, table.HasAccentTail())
}

func TestOrdinalDoesNotFoldCase(t *testing.T) {
	table := Lookup(Ordinal)
	assert.NotEqual(t, table.Weight('a'), table.Weight('A'))
}

func TestUnknownSortOrderFallsBackWithoutPanic(t *testing.T) {
	table := Lookup(SortOrder(0xBEEF))
	assert.NotPanics(t, func() { table.Weight('z') })
}

func TestLookupCachesTable(t *testing.T) {
	first := Lookup(GeneralLegacy)
	second := Lookup(GeneralLegacy)
	assert.Same(t, first, second)
}

func TestGeneralLegacyFoldsAccentedLetterCase(t *testing.T) {
	table := Lookup(GeneralLegacy)
	assert.Equal(t, table.Weight('à'), table.Weight('À'))
}
