package cardcompiler

import "sort"

// assignOrders renumbers card orders idempotently (spec section 4.5 step 7,
// property 1 "renumber idempotence"): existing orders already present on a
// grouping are kept (marking those integers used); new groupings receive
// the next unused integers, as a contiguous block of 1 (forward-only) or 2
// (forward+backward). New orders are stored on the first member (by
// document position) of their grouping; a grouping that already has orders
// keeps them on the first member that carries them. Either way only one
// member per grouping emits the "o" key.
func assignOrders(groups map[string][]clozeItem, names []string) {
	used := map[int]bool{}
	for _, name := range names {
		for _, m := range groups[name] {
			for _, o := range m.settings.Orders {
				used[o] = true
			}
		}
	}

	next := 1
	nextFree := func() int {
		for used[next] {
			next++
		}
		used[next] = true
		return next
	}

	for _, name := range names {
		members := groups[name]
		sort.Slice(members, func(i, j int) bool { return members[i].start.Start < members[j].start.Start })

		hasOrders := false
		for _, m := range members {
			if len(m.settings.Orders) > 0 {
				hasOrders = true
				break
			}
		}
		size := 1
		if members[0].settings.IncludeBackwardCard {
			size = 2
		}
		if !hasOrders {
			orders := make([]int, 0, size)
			for i := 0; i < size; i++ {
				orders = append(orders, nextFree())
			}
			members[0].settings.Orders = orders
			for i := 1; i < len(members); i++ {
				members[i].settings.Orders = nil
			}
		} else {
			// Keep existing orders on whichever member carried them; clear
			// from the rest so the codec only emits them once.
			carrierSeen := false
			for i := range members {
				if len(members[i].settings.Orders) > 0 && !carrierSeen {
					carrierSeen = true
					continue
				}
				members[i].settings.Orders = nil
			}
		}
		groups[name] = members
	}
}
