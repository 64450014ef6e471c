package rowstore

import (
	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/usagemap"
)

// tierBoundaries[i] is the minimum free-space fraction a page must have
// to belong to tier i; tier 0 is the emptiest bucket, the last tier the
// fullest a page can be and still take any row at all. Membership is a
// locality hint only — selectPageForInsert always re-checks a
// candidate's actual FreeSpace before committing to it, so a
// stale/approximate tier assignment only costs a wasted lookup, never a
// correctness bug.
var tierBoundaries = [freeSpaceTierCount]float64{0.75, 0.50, 0.25, 0.0}

// tierFor returns the tightest tier guaranteed to still satisfy a need-byte
// allocation, or -1 if need exceeds even the emptiest tier's guarantee (in
// which case the caller should search tier 0 anyway before giving up).
func (t *Table) tierFor(need int) int {
	frac := float64(need) / float64(t.fmt.PageSize)
	for i := freeSpaceTierCount - 1; i >= 0; i-- {
		if frac <= tierBoundaries[i] {
			return i
		}
	}
	return -1
}

// classify returns the tier a page with freeBytes of free space belongs
// to.
func (t *Table) classify(freeBytes int) int {
	frac := float64(freeBytes) / float64(t.fmt.PageSize)
	for i := 0; i < freeSpaceTierCount; i++ {
		if frac >= tierBoundaries[i] {
			return i
		}
	}
	return freeSpaceTierCount - 1
}

// reclassifyTier moves dp's page to the tier matching its current free
// space, after an insert or update has changed it.
func (t *Table) reclassifyTier(dp *DataPage) {
	pn := dp.Buffer().PageNumber
	for _, tier := range t.tiers {
		_ = tier.Remove(pn)
	}
	tier := t.classify(int(dp.FreeSpace()))
	_ = t.tiers[tier].Add(pn, true)
}

// selectPageForInsert finds a page with at least need bytes of free
// space, preferring the tightest-fitting tier first to keep pages
// densely packed, and allocates a fresh page if none qualifies.
func (t *Table) selectPageForInsert(need int) (*DataPage, error) {
	start := t.tierFor(need)
	if start < 0 {
		start = 0
	}
	for i := start; i >= 0; i-- {
		if dp, ok, err := t.scanTier(i, need); err != nil {
			return nil, err
		} else if ok {
			return dp, nil
		}
	}
	for i := start + 1; i < freeSpaceTierCount; i++ {
		if dp, ok, err := t.scanTier(i, need); err != nil {
			return nil, err
		} else if ok {
			return dp, nil
		}
	}
	return t.allocatePage()
}

// scanTier walks tier's member pages looking for one with enough free
// space for need bytes, verifying against the live page rather than
// trusting tier membership alone.
func (t *Table) scanTier(tierIdx, need int) (*DataPage, bool, error) {
	cur := t.tiers[tierIdx].NewCursor()
	for {
		pn, ok := cur.Next()
		if !ok {
			return nil, false, nil
		}
		buf, err := t.ch.ReadPage(pn)
		if err != nil {
			return nil, false, err
		}
		dp := Wrap(buf, t.off)
		if int(dp.FreeSpace()) >= need {
			return dp, true, nil
		}
		// Page has drifted out of this tier since it was classified; fix
		// its membership so future scans don't re-examine it here.
		actual := t.classify(int(dp.FreeSpace()))
		if actual != tierIdx {
			_ = t.tiers[tierIdx].Remove(pn)
			_ = t.tiers[actual].Add(pn, true)
		}
		buf.Release()
	}
}

// allocatePage grabs a fresh page from the channel, formats it as an
// empty DATA page, and appends it to this table's chain: the previous
// tail's NextPage is rewritten to point at it before the tail pointer
// moves, so the chain on disk is never observed broken even if the
// process dies between the two writes to follow.
func (t *Table) allocatePage() (*DataPage, error) {
	buf, err := t.ch.AllocatePage(byte(format.PageTypeData))
	if err != nil {
		return nil, err
	}
	dp := Init(buf, t.off, t.home)
	pn := buf.PageNumber
	if err := t.usage.Add(pn, true); err != nil && !usagemap.IsDuplicateAdd(err) {
		return nil, err
	}
	tier := t.classify(int(dp.FreeSpace()))
	if err := t.tiers[tier].Add(pn, true); err != nil && !usagemap.IsDuplicateAdd(err) {
		return nil, err
	}
	if t.tail != page.Invalid {
		tailBuf, err := t.ch.ReadPage(t.tail)
		if err != nil {
			return nil, err
		}
		tailDp := Wrap(tailBuf, t.off)
		tailDp.SetNextPage(pn)
		if err := t.ch.WritePage(tailBuf); err != nil {
			tailBuf.Release()
			return nil, err
		}
		tailBuf.Release()
	} else {
		t.head = pn
	}
	t.tail = pn
	return dp, nil
}
