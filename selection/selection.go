// selection holds the user's choices for one widget instance: selected rows, and the member
// chosen per dimension (widget-wide, or per row). No I/O and no knowledge of rendering.
package selection

import "sort"

// State is not safe for concurrent use; it is owned by a single binding.
type State struct {
	rows       map[int]struct{}
	dimensions map[string]string
	rowValues  map[string]map[string]string
}

func New() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset discards every choice.
func (s *State) Reset() {
	s.rows = map[int]struct{}{}
	s.dimensions = map[string]string{}
	s.rowValues = map[string]map[string]string{}
}

// ToggleRow flips the selection of row i and returns its new state.
// Toggling twice restores the prior state.
func (s *State) ToggleRow(i int) bool {
	if _, ok := s.rows[i]; ok {
		delete(s.rows, i)
		return false
	}
	s.rows[i] = struct{}{}
	return true
}

func (s *State) IsSelected(i int) bool {
	_, ok := s.rows[i]
	return ok
}

// SelectedIndices returns the selected rows in ascending order.
func (s *State) SelectedIndices() []int {
	indices := make([]int, 0, len(s.rows))
	for i := range s.rows {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// SetDimensionValue records the widget-wide member chosen for a dimension.
// An empty member id clears the choice.
func (s *State) SetDimensionValue(dimensionKey, memberID string) {
	if memberID == "" {
		delete(s.dimensions, dimensionKey)
		return
	}
	s.dimensions[dimensionKey] = memberID
}

func (s *State) DimensionValue(dimensionKey string) (string, bool) {
	v, ok := s.dimensions[dimensionKey]
	return v, ok
}

// SetRowValue records the member chosen for a dimension within a single row.
func (s *State) SetRowValue(rowKey, dimensionKey, memberID string) {
	values, ok := s.rowValues[rowKey]
	if !ok {
		if memberID == "" {
			return
		}
		values = map[string]string{}
		s.rowValues[rowKey] = values
	}
	if memberID == "" {
		delete(values, dimensionKey)
		return
	}
	values[dimensionKey] = memberID
}

func (s *State) RowValue(rowKey, dimensionKey string) (string, bool) {
	v, ok := s.rowValues[rowKey][dimensionKey]
	return v, ok
}
