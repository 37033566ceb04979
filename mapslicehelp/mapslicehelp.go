package mapslicehelp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

func OrderedMapKeys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	l := make([]K, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Key
		i++
	}
	return l
}

// CountIf counts the pairs for which pred holds.
func CountIf[K comparable, V any](m *orderedmap.OrderedMap[K, V], pred func(K, V) bool) int {
	n := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		if pred(p.Key, p.Value) {
			n++
		}
	}
	return n
}

func SortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	l := make([]K, 0, len(m))
	for k := range m {
		l = append(l, k)
	}
	slices.Sort(l)
	return l
}

func LastElement[T any](elements []T) *T {
	length := len(elements)
	if length > 0 {
		return &elements[length-1]
	}
	return nil
}
