package boolean

// Maybe is a tri-state truth value: definitely true, definitely false, or
// not yet known.
//
// The zero value is Indefinite.
//
// Two Maybe values are only equal if both are definite and hold the same
// boolean. An indefinite value is never equal to anything, including another
// indefinite value. Use Equal and Is rather than ==.
type Maybe uint8

const (
	Indefinite Maybe = iota
	False
	True
)

// Definite returns the definite Maybe for b.
func Definite(b bool) Maybe {
	if b {
		return True
	}
	return False
}

// FromPtr returns Indefinite for a nil pointer, or the definite value it
// points to.
func FromPtr(b *bool) Maybe {
	if b == nil {
		return Indefinite
	}
	return Definite(*b)
}

// IsDefinite reports whether m holds a known value.
func (m Maybe) IsDefinite() bool {
	return m == True || m == False
}

// Bool returns the value and whether it is definite.
func (m Maybe) Bool() (value bool, ok bool) {
	switch m {
	case True:
		return true, true
	case False:
		return false, true
	default:
		return false, false
	}
}

// Is reports whether m is definitely b.
func (m Maybe) Is(b bool) bool {
	v, ok := m.Bool()
	return ok && v == b
}

// Equal reports whether m and o are both definite and hold the same value.
func (m Maybe) Equal(o Maybe) bool {
	return m.IsDefinite() && m == o
}

// Not inverts a definite value. Indefinite stays indefinite.
func (m Maybe) Not() Maybe {
	switch m {
	case True:
		return False
	case False:
		return True
	default:
		return Indefinite
	}
}

func (m Maybe) String() string {
	switch m {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "indefinite"
	}
}
