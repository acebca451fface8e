package cvs

import "strconv"

// splitRevision splits a dotted revision number ("1.3.2.4") into its
// integer components. Malformed input yields nil.
func splitRevision(rev string) []int {
	if rev == "" {
		return nil
	}
	parts := make([]int, 0, 4)
	start := 0
	for i := 0; i <= len(rev); i++ {
		if i == len(rev) || rev[i] == '.' {
			n, err := strconv.Atoi(rev[start:i])
			if err != nil {
				return nil
			}
			parts = append(parts, n)
			start = i + 1
		}
	}
	return parts
}

func joinRevision(parts []int) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += "."
		}
		s += strconv.Itoa(p)
	}
	return s
}

func itoa(n int) string { return strconv.Itoa(n) }

// compareRevisions orders two dotted revision numbers the way CVS
// does: component by component, numerically. Used to sort sibling
// revisions and to find "the most recent revision at or before" a
// given point for branch ancestry (see reconstruct.go).
func compareRevisions(a, b string) int {
	pa, pb := splitRevision(a), splitRevision(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	default:
		return 0
	}
}
