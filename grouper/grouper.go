package grouper

import (
	"fmt"
	"slices"
)

type Student struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Preferences []string `json:"preferences"`
}

type Group struct {
	ID                string    `json:"id"`
	Students          []Student `json:"students"`
	CommonPreferences []string  `json:"common_preferences"`
}

// TopPreferences returns at most n common preferences, highest count first.
func (g Group) TopPreferences(n int) []string {
	if n < 0 || n >= len(g.CommonPreferences) {
		return g.CommonPreferences
	}
	return g.CommonPreferences[:n]
}

// Build partitions students into groups of groupSize, seeding each group with
// the earliest unclaimed student and growing it with the best-scoring
// remaining candidate. Only the last group may be short.
func Build(students []Student, groupSize int) []Group {
	groups := []Group{}
	if len(students) == 0 {
		return groups
	}
	groupSize = max(groupSize, 1)

	claimed := make([]bool, len(students))
	remaining := len(students)
	next := 0

	for remaining > 0 {
		for claimed[next] {
			next++
		}
		claimed[next] = true
		remaining--
		members := make([]Student, 0, min(groupSize, remaining+1))
		members = append(members, students[next])

		for len(members) < groupSize && remaining > 0 {
			best := -1
			bestScore := 0
			for i := next + 1; i < len(students); i++ {
				if claimed[i] {
					continue
				}
				sc := MatchScore(members, students[i])
				if best < 0 || sc > bestScore {
					best = i
					bestScore = sc
				}
			}
			claimed[best] = true
			remaining--
			members = append(members, students[best])
		}

		groups = append(groups, Group{
			ID:                fmt.Sprintf("group-%d", len(groups)+1),
			Students:          members,
			CommonPreferences: commonPreferences(members),
		})
	}
	return groups
}

// MatchScore rates how well candidate fits the current members. Each member
// preference the candidate also lists adds the member's list length minus the
// distance between the two ranks.
func MatchScore(members []Student, candidate Student) int {
	if len(candidate.Preferences) == 0 {
		return 0
	}
	sc := 0
	for _, m := range members {
		for i, pref := range m.Preferences {
			j := slices.Index(candidate.Preferences, pref)
			if j < 0 {
				continue
			}
			sc += len(m.Preferences) - abs(i-j)
		}
	}
	return sc
}

func commonPreferences(members []Student) []string {
	if len(members) == 0 {
		return []string{}
	}

	var order []string
	counts := map[string]int{}
	for _, s := range members {
		for _, pref := range s.Preferences {
			if _, ok := counts[pref]; !ok {
				order = append(order, pref)
			}
			counts[pref]++
		}
	}

	threshold := (len(members) + 1) / 2
	common := make([]string, 0, len(order))
	for _, pref := range order {
		if counts[pref] >= threshold {
			common = append(common, pref)
		}
	}
	slices.SortStableFunc(common, func(a, b string) int { return counts[b] - counts[a] })
	return common
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
