package usagemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/jetdb/page"
)

func TestInlineAddContainsRemove(t *testing.T) {
	m := NewInline(nil, page.Number(10), 64, false, 0)

	require.NoError(t, m.Add(page.Number(12), false))
	require.NoError(t, m.Add(page.Number(20), false))

	assert.True(t, m.Contains(page.Number(12)))
	assert.True(t, m.Contains(page.Number(20)))
	assert.False(t, m.Contains(page.Number(13)))

	require.NoError(t, m.Remove(page.Number(12)))
	assert.False(t, m.Contains(page.Number(12)))
}

func TestInlineAddDuplicateFails(t *testing.T) {
	m := NewInline(nil, page.Number(10), 64, false, 0)
	require.NoError(t, m.Add(page.Number(12), false))

	err := m.Add(page.Number(12), false)
	require.Error(t, err)
	assert.True(t, IsDuplicateAdd(err))
}

func TestInlineAddForceBypassesDuplicateCheck(t *testing.T) {
	m := NewInline(nil, page.Number(10), 64, false, 0)
	require.NoError(t, m.Add(page.Number(12), false))
	require.NoError(t, m.Add(page.Number(12), true))
}

func TestInlineShiftsWindowToFitOutOfRangeAdd(t *testing.T) {
	m := NewInline(nil, page.Number(0), 8, false, 0)
	require.NoError(t, m.Add(page.Number(2), false))

	// 9 is just outside the initial 0..7 window; the window must shift
	// right while preserving the bit already set at page 2.
	require.NoError(t, m.Add(page.Number(9), false))
	assert.True(t, m.Contains(page.Number(9)))
	assert.True(t, m.Contains(page.Number(2)))
}

func TestAssumeOutOfRangeOnContainsDefaultsTrue(t *testing.T) {
	m := NewInline(nil, page.Number(10), 8, true, 0)
	assert.True(t, m.Contains(page.Number(9999)))
}

func TestAssumeOutOfRangeOffContainsDefaultsFalse(t *testing.T) {
	m := NewInline(nil, page.Number(10), 8, false, 0)
	assert.False(t, m.Contains(page.Number(9999)))
}

func TestModCountIncrementsOnMutation(t *testing.T) {
	m := NewInline(nil, page.Number(0), 64, false, 0)
	before := m.ModCount()
	require.NoError(t, m.Add(page.Number(1), false))
	assert.Greater(t, m.ModCount(), before)
}

func TestPopAnyRemovesAndReturnsLowestSetPage(t *testing.T) {
	m := NewInline(nil, page.Number(0), 64, false, 0)
	require.NoError(t, m.Add(page.Number(5), false))
	require.NoError(t, m.Add(page.Number(3), false))

	pn, ok, err := m.PopAny()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, page.Number(3), pn)
	assert.False(t, m.Contains(page.Number(3)))
}

func TestPopAnyOnEmptyMapReportsNotOk(t *testing.T) {
	m := NewInline(nil, page.Number(0), 64, false, 0)
	_, ok, err := m.PopAny()
	require.NoError(t, err)
	assert.False(t, ok)
}
