package utils

// StringSet is a set of unique strings that remembers insertion order.
type StringSet struct {
	m     map[string]struct{}
	order []string
}

func NewStringSet(strings ...string) *StringSet {
	res := &StringSet{
		m: map[string]struct{}{},
	}
	res.AddAll(strings...)
	return res
}

// Add adds a string to the set. It returns false if the string was already in the set.
func (s *StringSet) Add(str string) bool {
	if s.Exists(str) {
		return false
	}
	s.m[str] = struct{}{}
	s.order = append(s.order, str)
	return true
}

func (s *StringSet) AddAll(strings ...string) {
	for _, str := range strings {
		s.Add(str)
	}
}

func (s *StringSet) Exists(str string) bool {
	_, ok := s.m[str]
	return ok
}

func (s *StringSet) IsEmpty() bool {
	return len(s.m) == 0
}

// ToSlice returns the strings in the order they were first added.
func (s *StringSet) ToSlice() []string {
	if s.IsEmpty() {
		return nil
	}
	res := make([]string, len(s.order))
	copy(res, s.order)
	return res
}
