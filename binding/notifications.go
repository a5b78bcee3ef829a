package binding

// NotificationKind distinguishes the selection-changed notifications sent to the host shell.
type NotificationKind int

const (
	// SelectionChanged: a member was chosen for a dimension, widget-wide (empty RowKey) or for one row.
	SelectionChanged NotificationKind = iota
	// RowSelectionChanged: a table row was selected or deselected.
	RowSelectionChanged
)

func (k NotificationKind) String() string {
	if k == RowSelectionChanged {
		return "row-selection-changed"
	}
	return "selection-changed"
}

// Notification is forwarded by the host shell to its own hosting environment.
type Notification struct {
	Kind         NotificationKind `json:"-"`
	Event        string           `json:"event"`
	RowKey       string           `json:"rowKey,omitempty"`
	DimensionKey string           `json:"dimensionKey,omitempty"`
	MemberID     string           `json:"memberId,omitempty"`
	RowIndex     int              `json:"rowIndex"`
	Selected     bool             `json:"selected"`
}

func selectionChanged(rowKey, dimensionKey, memberID string) Notification {
	return Notification{
		Kind:         SelectionChanged,
		Event:        SelectionChanged.String(),
		RowKey:       rowKey,
		DimensionKey: dimensionKey,
		MemberID:     memberID,
		RowIndex:     -1,
	}
}

func rowSelectionChanged(row int, selected bool) Notification {
	return Notification{
		Kind:     RowSelectionChanged,
		Event:    RowSelectionChanged.String(),
		RowIndex: row,
		Selected: selected,
	}
}

// outbox is an unbounded FIFO between the binding's loop and a consumer, so that slow consumers
// never stall the loop and nothing is dropped while the binding lives.
type outbox[T any] struct {
	in  chan T
	out chan T
}

func newOutbox[T any](done <-chan struct{}) *outbox[T] {
	ob := &outbox[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go ob.pump(done)
	return ob
}

func (ob *outbox[T]) pump(done <-chan struct{}) {
	defer close(ob.out)

	var queue []T
	for {
		var out chan T
		var next T
		if len(queue) > 0 {
			out = ob.out
			next = queue[0]
		}

		select {
		case v := <-ob.in:
			queue = append(queue, v)
		case out <- next:
			queue = queue[1:]
		case <-done:
			return
		}
	}
}

func (ob *outbox[T]) put(done <-chan struct{}, v T) {
	select {
	case ob.in <- v:
	case <-done:
	}
}
