package util

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// VLAN ids legal under IEEE 802.1Q
const (
	VLANMin = 1
	VLANMax = 4094
)

// ValidVLANID reports whether id is a legal 802.1Q VLAN id.
func ValidVLANID(id int) bool {
	return id >= VLANMin && id <= VLANMax
}

// ExpandVLANRange expands a VLAN range specification into a sorted,
// deduplicated set of legal VLAN ids. Supported formats:
//   - "10" -> [10]
//   - "10,20,30" -> [10, 20, 30]
//   - "10,20-22,30" -> [10, 20, 21, 22, 30]
//
// Malformed parts, inverted ranges ("15-12") and ids outside 1..4094 are
// dropped, never fatal; each dropped part produces a warning string.
func ExpandVLANRange(spec string) ([]int, []string) {
	var result []int
	var warnings []string

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			rangeParts := strings.SplitN(part, "-", 2)
			start, err1 := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			end, err2 := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err1 != nil || err2 != nil {
				warnings = append(warnings, fmt.Sprintf("unparseable vlan range '%s'", part))
				continue
			}
			if start > end {
				warnings = append(warnings, fmt.Sprintf("inverted vlan range '%s'", part))
				continue
			}
			for id := start; id <= end; id++ {
				if !ValidVLANID(id) {
					warnings = append(warnings, fmt.Sprintf("vlan %d outside 1-4094", id))
					continue
				}
				result = append(result, id)
			}
		} else {
			id, err := strconv.Atoi(part)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("unparseable vlan '%s'", part))
				continue
			}
			if !ValidVLANID(id) {
				warnings = append(warnings, fmt.Sprintf("vlan %d outside 1-4094", id))
				continue
			}
			result = append(result, id)
		}
	}

	sort.Ints(result)
	return dedupInts(result), warnings
}

// CompactRange compacts a list of integers into range notation
// [1, 2, 3, 5, 7, 8, 9] -> "1-3,5,7-9"
func CompactRange(values []int) string {
	if len(values) == 0 {
		return ""
	}

	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	sorted = dedupInts(sorted)

	var parts []string
	start := sorted[0]
	end := sorted[0]

	for i := 1; i < len(sorted); i++ {
		if sorted[i] == end+1 {
			end = sorted[i]
		} else {
			parts = append(parts, formatRange(start, end))
			start = sorted[i]
			end = sorted[i]
		}
	}
	parts = append(parts, formatRange(start, end))

	return strings.Join(parts, ",")
}

func formatRange(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

func dedupInts(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	result := []int{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			result = append(result, sorted[i])
		}
	}
	return result
}

// SortedVLANSet returns the keys of a VLAN presence set in ascending order.
func SortedVLANSet(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
