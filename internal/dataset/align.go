package dataset

import (
	"fmt"
	"time"

	"github.com/rewired-gh/indexcast/internal/models"
)

// FillPolicy decides what happens to dates present in only one of two series
type FillPolicy string

const (
	// FillDrop keeps only dates present in both series.
	FillDrop FillPolicy = "drop"
	// FillPad carries the last known secondary value forward over its gaps.
	FillPad FillPolicy = "pad"
)

// Aligned is a pair of series sharing exactly the same timestamps
type Aligned struct {
	Primary   models.Series
	Secondary models.Series
}

// Align joins two series on calendar date. Under FillPad, primary dates before
// the first secondary observation are dropped since there is nothing to carry.
func Align(primary, secondary models.Series, fill FillPolicy) (Aligned, error) {
	if fill != FillDrop && fill != FillPad {
		return Aligned{}, fmt.Errorf("unknown fill policy %q", fill)
	}
	if err := primary.Validate(); err != nil {
		return Aligned{}, fmt.Errorf("invalid primary series: %w", err)
	}
	if err := secondary.Validate(); err != nil {
		return Aligned{}, fmt.Errorf("invalid secondary series: %w", err)
	}

	out := Aligned{
		Primary:   models.Series{Name: primary.Name},
		Secondary: models.Series{Name: secondary.Name},
	}

	// both series are sorted, so a merge walk is enough
	j := 0
	var last *models.Observation
	for _, p := range primary.Observations {
		pd := dateOf(p.Timestamp)
		for j < len(secondary.Observations) && dateOf(secondary.Observations[j].Timestamp).Before(pd) {
			last = &secondary.Observations[j]
			j++
		}

		var match *models.Observation
		if j < len(secondary.Observations) && dateOf(secondary.Observations[j].Timestamp).Equal(pd) {
			match = &secondary.Observations[j]
			last = match
			j++
		} else if fill == FillPad && last != nil {
			match = last
		}
		if match == nil {
			continue
		}

		out.Primary.Observations = append(out.Primary.Observations, p)
		out.Secondary.Observations = append(out.Secondary.Observations, models.Observation{
			Timestamp: p.Timestamp,
			Value:     match.Value,
		})
	}
	return out, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AlignAll aligns several secondary series with primary, keeping only the
// primary dates every secondary can supply under fill. The returned secondaries
// are in input order and share the returned primary's timestamps.
func AlignAll(primary models.Series, secondaries []models.Series, fill FillPolicy) (models.Series, []models.Series, error) {
	pairs := make([]Aligned, len(secondaries))
	counts := make(map[int64]int, primary.Len())
	for i, sec := range secondaries {
		a, err := Align(primary, sec, fill)
		if err != nil {
			return models.Series{}, nil, fmt.Errorf("failed to align %s: %w", sec.Name, err)
		}
		pairs[i] = a
		for _, o := range a.Primary.Observations {
			counts[o.Timestamp.UnixNano()]++
		}
	}
	if len(secondaries) == 0 {
		if err := primary.Validate(); err != nil {
			return models.Series{}, nil, fmt.Errorf("invalid primary series: %w", err)
		}
		return primary, nil, nil
	}

	keep := func(t time.Time) bool { return counts[t.UnixNano()] == len(secondaries) }

	outPrimary := models.Series{Name: primary.Name}
	for _, o := range primary.Observations {
		if keep(o.Timestamp) {
			outPrimary.Observations = append(outPrimary.Observations, o)
		}
	}
	outSecondaries := make([]models.Series, len(pairs))
	for i, a := range pairs {
		outSecondaries[i] = models.Series{Name: a.Secondary.Name}
		for _, o := range a.Secondary.Observations {
			if keep(o.Timestamp) {
				outSecondaries[i].Observations = append(outSecondaries[i].Observations, o)
			}
		}
	}
	return outPrimary, outSecondaries, nil
}
