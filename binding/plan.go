package binding

import (
	"fmt"

	"dimfilter/models"
)

// PlanKind tags the RenderPlan union.
type PlanKind int

const (
	// Loading: no source is bound, or it has not loaded successfully.
	Loading PlanKind = iota
	// EmptyDimensions: the binding has no active dimensions; the user is asked to configure some.
	EmptyDimensions
	// EmptyMeasures: a table binding has no active measures.
	EmptyMeasures
	Ready
)

func (k PlanKind) String() string {
	switch k {
	case Loading:
		return "loading"
	case EmptyDimensions:
		return "empty-dimensions"
	case EmptyMeasures:
		return "empty-measures"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

func (k PlanKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PlanKind) UnmarshalText(text []byte) error {
	for _, kind := range []PlanKind{Loading, EmptyDimensions, EmptyMeasures, Ready} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown plan kind %q", text)
}

// RenderPlan is everything the host shell needs to paint the widget. Plans are value
// snapshots: painting one never races with the binding that produced it.
type RenderPlan struct {
	Kind  PlanKind   `json:"kind"`
	Ready *ReadyPlan `json:"ready,omitempty"`
}

// ReadyPlan is the payload of a Ready plan.
type ReadyPlan struct {
	// Dimensions holds one widget-wide selection control per active dimension, in feed order.
	Dimensions []DimensionControl        `json:"dimensions"`
	Measures   []models.ResolvedMeasure `json:"measures,omitempty"`
	Rows       []Row                    `json:"rows"`
	// Selection lists the selected row indices in ascending order.
	Selection []int `json:"selection"`
}

// DimensionControl is one selection control. Loaded is false while its members are still being
// fetched; controls populate independently of one another.
type DimensionControl struct {
	Dimension models.ResolvedDimension `json:"dimension"`
	Members   []models.Member          `json:"members"`
	Loaded    bool                     `json:"loaded"`
	Selected  string                   `json:"selected,omitempty"`
}

// Row is one logical row. Record rows mirror a data record; draft rows were added by the user
// and carry their own controls and editable measures.
type Row struct {
	Index      int            `json:"index"`
	Key        string         `json:"key"`
	Draft      bool           `json:"draft"`
	Selected   bool           `json:"selected"`
	Dimensions []RowDimension `json:"dimensions"`
	Measures   []RowMeasure   `json:"measures,omitempty"`
}

// RowDimension is a row's cell for one dimension: the record's value, or for a draft row a
// control of its own.
type RowDimension struct {
	Key     string            `json:"key"`
	Value   string            `json:"value,omitempty"`
	Control *DimensionControl `json:"control,omitempty"`
}

type RowMeasure struct {
	Key      string   `json:"key"`
	Raw      *float64 `json:"raw,omitempty"`
	Display  string   `json:"display"`
	Editable bool     `json:"editable"`
}

// Control looks up the widget-wide control of a dimension.
func (p *ReadyPlan) Control(dimensionKey string) (DimensionControl, bool) {
	for _, ctl := range p.Dimensions {
		if ctl.Dimension.Key == dimensionKey {
			return ctl, true
		}
	}
	return DimensionControl{}, false
}

// Renderer is implemented by host shells that paint plans.
type Renderer interface {
	Render(RenderPlan) error
}
