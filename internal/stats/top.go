package stats

import (
	"sort"

	"github.com/verte-zerg/analogrec/internal/model"
)

// TopKeys returns the n most observed keys, ties broken by code. n <= 0
// returns all keys.
func TopKeys(aggs []model.KeyAggregate, n int) []model.KeyAggregate {
	if len(aggs) == 0 {
		return nil
	}
	items := make([]model.KeyAggregate, len(aggs))
	copy(items, aggs)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Observations == items[j].Observations {
			return items[i].Code < items[j].Code
		}
		return items[i].Observations > items[j].Observations
	})
	if n <= 0 || n > len(items) {
		n = len(items)
	}
	return items[:n]
}
