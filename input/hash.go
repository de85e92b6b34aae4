package input

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/hashstructure/v2"
)

type hashedInput struct {
	Extractor any
	Matcher   any
}

// hashInput hashes a predicate by value. Keyed matchers contribute their key.
// Values hashstructure cannot walk fall back to their type names, which keeps
// equal values in the same bucket at the cost of more equality checks.
func hashInput(extractor any, matcher any) uint64 {
	v := hashedInput{Extractor: extractor, Matcher: matcher}
	if k, ok := matcher.(Keyed); ok {
		v.Matcher = fmt.Sprintf("%T:%s", matcher, k.Key())
	}
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		h, _ = hashstructure.Hash(fmt.Sprintf("%T/%T", extractor, matcher), hashstructure.FormatV2, nil)
	}
	return h
}

// sameMatcher compares two matchers behind the Matcher interface. Matchers
// of different dynamic types are never equal.
func sameMatcher[D any](a, b Matcher[D]) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ka, ok := a.(Keyed); ok {
		return ka.Key() == b.(Keyed).Key()
	}
	if ta == nil {
		return true
	}
	switch ta.Kind() {
	case reflect.Func:
		return false
	case reflect.Slice, reflect.Map:
		return reflect.DeepEqual(a, b)
	}
	if ta.Comparable() {
		return equalComparable(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// equalComparable is a == b for a comparable type. A struct with interface
// fields is comparable but panics when a field holds a slice or map, so
// those values are compared deeply instead.
func equalComparable(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}
