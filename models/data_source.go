package models

import (
	"encoding/json"
	"io"
	"strconv"
	"sync"
)

// DataState is the load state of a bound analytic result, as reported by the hosting platform.
type DataState string

const (
	StatePending DataState = "pending"
	StateSuccess DataState = "success"
	StateError   DataState = "error"
)

// Cell is one key's value within a Record. Only the fields relevant to the consuming
// dimension or measure are populated; empty strings and a nil Raw mean "no value".
type Cell struct {
	ID        string   `json:"id,omitempty"`
	Label     string   `json:"label,omitempty"`
	Raw       *float64 `json:"raw,omitempty"`
	Formatted string   `json:"formatted,omitempty"`
}

// Identity returns the value identifying this cell as a dimension member.
// ReturnID prefers id over label, ReturnLabel the reverse. Empty means the cell has no value.
func (c Cell) Identity(rt ReturnType) string {
	if rt == ReturnLabel {
		if c.Label != "" {
			return c.Label
		}
		return c.ID
	}
	if c.ID != "" {
		return c.ID
	}
	return c.Label
}

// Display returns the text shown for the cell. Raw wins over formatted so that an edited
// measure round-trips exactly what the user typed.
func (c Cell) Display() string {
	switch {
	case c.Raw != nil:
		return strconv.FormatFloat(*c.Raw, 'f', -1, 64)
	case c.Formatted != "":
		return c.Formatted
	case c.Label != "":
		return c.Label
	}
	return c.ID
}

// Record is a single analytic row: dimension and measure keys mapped to their cells.
type Record map[string]Cell

// DimensionInfo describes a dimension in the metadata. Either field may be absent.
type DimensionInfo struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
}

// MeasureInfo describes a measure (a main structure member) in the metadata.
type MeasureInfo struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
}

// FeedValues is the ordered list of active keys of a feed.
type FeedValues struct {
	Values []string `json:"values,omitempty"`
}

// Feeds determines which keys are active, and their display order.
type Feeds struct {
	Dimensions FeedValues `json:"dimensions"`
	Measures   FeedValues `json:"measures"`
}

// Metadata annotates a result set with its dimension and measure descriptions.
// Any part of it may be missing.
type Metadata struct {
	Dimensions           map[string]DimensionInfo `json:"dimensions,omitempty"`
	MainStructureMembers map[string]MeasureInfo   `json:"mainStructureMembers,omitempty"`
	Feeds                Feeds                    `json:"feeds"`
}

// DataSource is a bound analytic result. It is owned by the host shell; the binding core only
// reads it, except for WriteRaw, the single narrow path by which edited measures are written back.
// Always share a DataSource by pointer: its identity is what a binding compares on rebind.
type DataSource struct {
	mu       sync.RWMutex
	State    DataState `json:"state"`
	Data     []Record  `json:"data"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// NewDataSource returns a data source over the passed records and metadata.
func NewDataSource(state DataState, data []Record, metadata *Metadata) *DataSource {
	return &DataSource{
		State:    state,
		Data:     data,
		Metadata: metadata,
	}
}

// ReadDataSource decodes a data source from its JSON wire format.
func ReadDataSource(r io.Reader) (*DataSource, error) {
	ds := &DataSource{}
	if err := json.NewDecoder(r).Decode(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// MarshalJSON encodes the data source under its read lock.
func (ds *DataSource) MarshalJSON() ([]byte, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return json.Marshal(struct {
		State    DataState `json:"state"`
		Data     []Record  `json:"data"`
		Metadata *Metadata `json:"metadata,omitempty"`
	}{ds.State, ds.Data, ds.Metadata})
}

func (ds *DataSource) CurrentState() DataState {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.State
}

// SetState advances the source in place, e.g. from pending to success once the platform
// delivers the result. A binding only sees the new state once the source is bound again.
func (ds *DataSource) SetState(state DataState) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.State = state
}

// Len returns the number of records; zero when data is absent.
func (ds *DataSource) Len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return len(ds.Data)
}

// Meta returns a copy of the metadata, or its zero value when absent.
func (ds *DataSource) Meta() Metadata {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.Metadata == nil {
		return Metadata{}
	}
	return *ds.Metadata
}

// Column snapshots the cells of one key across all records, in record order.
// Records lacking the key contribute an empty cell.
func (ds *DataSource) Column(key string) ([]Cell, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.Data == nil {
		return nil, ErrDataUnavailable
	}
	column := make([]Cell, len(ds.Data))
	for i, record := range ds.Data {
		column[i] = record[key]
	}
	return column, nil
}

// CellAt returns the cell at the passed row and key.
func (ds *DataSource) CellAt(row int, key string) (Cell, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if row < 0 || row >= len(ds.Data) || ds.Data[row] == nil {
		return Cell{}, false
	}
	cell, ok := ds.Data[row][key]
	return cell, ok
}

// WriteRaw replaces exactly one cell with {raw: value}. The write happens under the
// write lock so a half-written record is never observable by readers.
func (ds *DataSource) WriteRaw(row int, key string, value float64) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if row < 0 || row >= len(ds.Data) {
		return ErrInvalidRow
	}
	if ds.Data[row] == nil {
		ds.Data[row] = Record{}
	}
	ds.Data[row][key] = Cell{Raw: &value}
	return nil
}
