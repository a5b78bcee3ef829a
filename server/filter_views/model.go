// filter_views contains the views of a dimension filter widget, all derived from the Model
// view-model. Model fields are immediately usable as template parameters.
package filter_views

import (
	"dimfilter/binding"
)

// Messages shown by the status view, per plan kind.
const (
	LoadingMessage         = "Loading…"
	EmptyDimensionsMessage = "Add at least one dimension to the widget."
	EmptyMeasuresMessage   = "Add at least one measure to the table."
)

// Model is the view-model of a whole widget.
type Model struct {
	Kind    string
	Message string
	Ready   bool
	// Controls are the widget-wide selection controls, one per dimension.
	Controls   []Control
	Dimensions []Header
	Measures   []Header
	Rows       []RowModel
}

type Header struct {
	Key   string
	Label string
}

// Control is a select element. RowKey is empty for widget-wide controls.
type Control struct {
	RowKey       string
	DimensionKey string
	Label        string
	Loaded       bool
	Options      []Option
}

type Option struct {
	Value    string
	Label    string
	Selected bool
}

type RowModel struct {
	Index      int
	Draft      bool
	Selected   bool
	Dimensions []DimensionCell
	Measures   []MeasureCell
}

// DimensionCell shows a record's value, or for an added row a control of its own.
type DimensionCell struct {
	Text    string
	Control *Control
}

type MeasureCell struct {
	Row      int
	Key      string
	Value    string
	Editable bool
}

// Convert transforms a render plan into the widget view-model.
func Convert(plan binding.RenderPlan) Model {
	m := Model{Kind: plan.Kind.String()}
	switch plan.Kind {
	case binding.Loading:
		m.Message = LoadingMessage
		return m
	case binding.EmptyDimensions:
		m.Message = EmptyDimensionsMessage
		return m
	case binding.EmptyMeasures:
		m.Message = EmptyMeasuresMessage
		return m
	}
	if plan.Ready == nil {
		return m
	}

	ready := plan.Ready
	m.Ready = true
	for _, dc := range ready.Dimensions {
		m.Controls = append(m.Controls, convertControl("", dc))
		m.Dimensions = append(m.Dimensions, Header{Key: dc.Dimension.Key, Label: dc.Dimension.Description})
	}
	for _, measure := range ready.Measures {
		m.Measures = append(m.Measures, Header{Key: measure.Key, Label: measure.Description})
	}

	for _, row := range ready.Rows {
		rm := RowModel{Index: row.Index, Draft: row.Draft, Selected: row.Selected}
		for _, rd := range row.Dimensions {
			cell := DimensionCell{Text: rd.Value}
			if rd.Control != nil {
				ctl := convertControl(row.Key, *rd.Control)
				cell.Control = &ctl
			}
			rm.Dimensions = append(rm.Dimensions, cell)
		}
		for _, measure := range row.Measures {
			rm.Measures = append(rm.Measures, MeasureCell{
				Row:      row.Index,
				Key:      measure.Key,
				Value:    measure.Display,
				Editable: measure.Editable,
			})
		}
		m.Rows = append(m.Rows, rm)
	}
	return m
}

func convertControl(rowKey string, dc binding.DimensionControl) Control {
	ctl := Control{
		RowKey:       rowKey,
		DimensionKey: dc.Dimension.Key,
		Label:        dc.Dimension.Description,
		Loaded:       dc.Loaded,
	}
	for _, member := range dc.Members {
		ctl.Options = append(ctl.Options, Option{
			Value:    member.ID,
			Label:    member.Label,
			Selected: member.ID == dc.Selected,
		})
	}
	return ctl
}
