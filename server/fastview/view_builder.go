package fastview

import (
	"context"
	"errors"

	channerics "github.com/niceyeti/channerics/channels"
)

// ViewBuilderFunc builds one view reading the shared view-model stream until done closes.
type ViewBuilderFunc[ViewModel any] func(done <-chan struct{}, vms <-chan ViewModel) ViewComponent

// ViewBuilder wires several views to a single stream of data: each data item is converted once
// and every view gets its own copy of the result.
type ViewBuilder[DataModel any, ViewModel any] struct {
	input    <-chan DataModel
	convert  func(DataModel) ViewModel
	builders []ViewBuilderFunc[ViewModel]
	// nil means the views live as long as the input.
	done <-chan struct{}
}

var (
	// ErrNoViews is returned by Build when no view was added.
	ErrNoViews = errors.New("no views to build: WithView must be called")
	// ErrNoModel is returned when no conversion was set with WithModel.
	ErrNoModel = errors.New("no model specified: WithModel must be called")
)

func NewViewBuilder[DataModel any, ViewModel any]() *ViewBuilder[DataModel, ViewModel] {
	return &ViewBuilder[DataModel, ViewModel]{}
}

// WithModel sets the data stream and its conversion into view-models.
func (vb *ViewBuilder[DataModel, ViewModel]) WithModel(
	input <-chan DataModel,
	convert func(DataModel) ViewModel,
) *ViewBuilder[DataModel, ViewModel] {
	vb.input, vb.convert = input, convert
	return vb
}

// WithView appends a view. Build returns views in the order they were appended.
func (vb *ViewBuilder[DataModel, ViewModel]) WithView(
	build ViewBuilderFunc[ViewModel],
) *ViewBuilder[DataModel, ViewModel] {
	vb.builders = append(vb.builders, build)
	return vb
}

// WithContext stops every view stream once ctx is cancelled.
func (vb *ViewBuilder[DataModel, ViewModel]) WithContext(
	ctx context.Context,
) *ViewBuilder[DataModel, ViewModel] {
	vb.done = ctx.Done()
	return vb
}

// Build starts the conversion and hands each view its stream. Views share one upstream, so a
// view that stops reading holds up the rest.
func (vb *ViewBuilder[DataModel, ViewModel]) Build() ([]ViewComponent, error) {
	if len(vb.builders) == 0 {
		return nil, ErrNoViews
	}
	if vb.convert == nil {
		return nil, ErrNoModel
	}

	vms := channerics.Convert(vb.done, vb.input, vb.convert)
	if len(vb.builders) == 1 {
		return []ViewComponent{vb.builders[0](vb.done, vms)}, nil
	}

	streams := channerics.Broadcast(vb.done, vms, len(vb.builders))
	views := make([]ViewComponent, 0, len(vb.builders))
	for i, build := range vb.builders {
		views = append(views, build(vb.done, streams[i]))
	}
	return views, nil
}

// Model converts one data item directly, for pages rendered before any stream update.
func (vb *ViewBuilder[DataModel, ViewModel]) Model(data DataModel) (vm ViewModel, err error) {
	if vb.convert == nil {
		return vm, ErrNoModel
	}
	return vb.convert(data), nil
}
