// Package selection tracks which images are marked for batch deletion.
package selection

// Set is an insertion-ordered set of image filenames.
// It is not safe for concurrent use; the owning view guards it.
type Set struct {
	order []string
	index map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{index: make(map[string]struct{})}
}

// Toggle flips membership of filename and reports whether it is now selected.
func (s *Set) Toggle(filename string) bool {
	if _, ok := s.index[filename]; ok {
		s.remove(filename)
		return false
	}
	s.index[filename] = struct{}{}
	s.order = append(s.order, filename)
	return true
}

// Contains reports whether filename is selected.
func (s *Set) Contains(filename string) bool {
	_, ok := s.index[filename]
	return ok
}

// Len returns the number of selected filenames.
func (s *Set) Len() int {
	return len(s.order)
}

// Filenames returns a copy of the selection in toggle order.
func (s *Set) Filenames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Remove drops every given filename that is selected.
func (s *Set) Remove(filenames ...string) {
	for _, f := range filenames {
		if _, ok := s.index[f]; ok {
			s.remove(f)
		}
	}
}

// Clear empties the set.
func (s *Set) Clear() {
	s.order = nil
	s.index = make(map[string]struct{})
}

func (s *Set) remove(filename string) {
	delete(s.index, filename)
	for i, f := range s.order {
		if f == filename {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
