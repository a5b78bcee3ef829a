// binding orchestrates one mounted widget: it binds a data source, resolves its dimensions,
// measures and members, and projects all of it into RenderPlans for the host shell. User
// interaction flows back in through the controller's methods.
package binding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dimfilter/dimension_catalog"
	"dimfilter/member_resolver"
	"dimfilter/models"
	"dimfilter/selection"
)

// Variant selects the widget flavour.
type Variant int

const (
	// Dropdown renders one selection control per dimension, plus any rows the user adds.
	Dropdown Variant = iota
	// Table additionally renders one editable row per record, with measure columns.
	Table
)

func (v Variant) String() string {
	if v == Table {
		return "table"
	}
	return "dropdown"
}

// ParseVariant parses "dropdown" or "table".
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dropdown":
		return Dropdown, nil
	case "table":
		return Table, nil
	}
	return Dropdown, fmt.Errorf("unknown widget variant %q", s)
}

// Status is the controller's position in its lifecycle.
type Status int

const (
	Unbound Status = iota
	StatusLoading
	StatusEmptyDimensions
	StatusEmptyMeasures
	StatusReady
)

func (s Status) String() string {
	return [...]string{"unbound", "loading", "empty-dimensions", "empty-measures", "ready"}[s]
}

// Option configures a Controller.
type Option func(*Controller)

func WithVariant(v Variant) Option {
	return func(c *Controller) { c.variant = v }
}

// WithReturnType selects which cell field a record row shows for its dimensions.
func WithReturnType(rt models.ReturnType) Option {
	return func(c *Controller) { c.returnType = rt }
}

// controlKey addresses a selection control: the widget-wide control of a dimension has an empty row.
type controlKey struct {
	row       string
	dimension string
}

type control struct {
	members  []models.Member
	loaded   bool
	inFlight bool
}

// draft is a row added by the user. It has no backing record.
type draft struct {
	index    int
	key      string
	measures map[string]float64
}

// Controller is the stateful orchestrator bound one-to-one with a widget instance.
// A single loop goroutine owns every field below the channels; the exported methods post
// work to it and wait, so they are safe to call from any goroutine, but not from a
// Renderer or consumer running on the loop itself.
type Controller struct {
	variant    Variant
	returnType models.ReturnType
	resolver   member_resolver.Resolver

	ctx     context.Context
	cancel  context.CancelFunc
	cmds    chan func()
	stopped chan struct{}
	plans   chan RenderPlan
	notes   *outbox[Notification]
	diags   *outbox[models.Diagnostic]

	source     *models.DataSource
	state      models.DataState
	generation uint64
	dimensions []models.ResolvedDimension
	measures   []models.ResolvedMeasure
	controls   map[controlKey]*control
	drafts     []*draft
	selection  *selection.State
}

// New starts a controller resolving members with the passed resolver. The controller is torn
// down by Close or when ctx is cancelled.
//
// Notifications and Diagnostics are queued without bound until read, so a caller must drain
// both streams for as long as the controller lives.
func New(ctx context.Context, resolver member_resolver.Resolver, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		resolver:  resolver,
		ctx:       ctx,
		cancel:    cancel,
		cmds:      make(chan func()),
		stopped:   make(chan struct{}),
		plans:     make(chan RenderPlan, 1),
		controls:  map[controlKey]*control{},
		selection: selection.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.notes = newOutbox[Notification](ctx.Done())
	c.diags = newOutbox[models.Diagnostic](ctx.Done())

	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.stopped)
	defer close(c.plans)
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.ctx.Done():
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func()) error {
	done := make(chan struct{})
	select {
	case c.cmds <- func() { defer close(done); fn() }:
	case <-c.stopped:
		return models.ErrTornDown
	}
	<-done
	return nil
}

// post queues fn on the loop without waiting. Work posted after teardown is dropped.
func (c *Controller) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.stopped:
	}
}

// Plans returns the stream of plans, one per state change. Plans are idempotent: a consumer that
// falls behind only ever receives the latest one. The channel closes on teardown.
func (c *Controller) Plans() <-chan RenderPlan {
	return c.plans
}

// Notifications returns the selection-changed notifications destined for the host environment.
func (c *Controller) Notifications() <-chan Notification {
	return c.notes.out
}

// Diagnostics returns the non-fatal conditions raised while binding.
func (c *Controller) Diagnostics() <-chan models.Diagnostic {
	return c.diags.out
}

// Close tears the controller down. It is terminal: every later call returns models.ErrTornDown.
func (c *Controller) Close() {
	c.cancel()
	<-c.stopped
}

// Bind binds a data source. Binding the same reference again re-resolves its catalog and
// re-renders without repeating fetches already resolved or in flight. A different reference
// starts a fresh resolution cycle: choices, draft rows and members are reset, and results of
// fetches still outstanding for the old source are discarded when they arrive.
// The source's state is read here only: a source whose state changes in place must be bound
// again for the change to show.
func (c *Controller) Bind(source *models.DataSource) error {
	return c.do(func() {
		if source != c.source {
			c.generation++
			c.source = source
			c.controls = map[controlKey]*control{}
			c.drafts = nil
			c.selection.Reset()
		}
		c.state = ""
		if source != nil {
			c.state = source.CurrentState()
		}
		c.resolveCatalog()
		c.fetchMissing()
		c.publish()
	})
}

// Render returns the plan for the current state.
func (c *Controller) Render() (plan RenderPlan, err error) {
	err = c.do(func() {
		plan = c.plan()
	})
	return
}

// Status reports where the controller is in its lifecycle.
func (c *Controller) Status() Status {
	status := Unbound
	err := c.do(func() {
		if c.source == nil {
			return
		}
		switch c.plan().Kind {
		case Loading:
			status = StatusLoading
		case EmptyDimensions:
			status = StatusEmptyDimensions
		case EmptyMeasures:
			status = StatusEmptyMeasures
		case Ready:
			status = StatusReady
		}
	})
	if err != nil {
		return Unbound
	}
	return status
}

// AddEmptyRow appends a draft row and returns its index, the row count before the append.
// Members for each of its controls are resolved against the existing data; the draft itself
// contributes none.
func (c *Controller) AddEmptyRow() (index int, err error) {
	doErr := c.do(func() {
		if !c.ready() {
			err = models.ErrDataUnavailable
			return
		}
		index = c.rowCount()
		d := &draft{
			index:    index,
			key:      strconv.Itoa(index),
			measures: map[string]float64{},
		}
		c.drafts = append(c.drafts, d)
		for _, dim := range c.dimensions {
			c.fetch(d.key, dim)
		}
		c.publish()
	})
	if doErr != nil {
		return 0, doErr
	}
	return index, err
}

// OnUserEdit applies a measure edit typed by the user. Text that does not parse as a finite
// number is rejected with models.ErrInvalidEdit and nothing is written; the republished plan
// reverts the cell. An accepted edit on a record row writes {raw: value} into exactly that
// cell of the bound source.
func (c *Controller) OnUserEdit(row int, measureKey, rawText string) (err error) {
	doErr := c.do(func() {
		err = c.edit(row, measureKey, rawText)
		if err != nil && errors.Is(err, models.ErrInvalidEdit) {
			c.diagnose(models.InvalidEdit, measureKey, row, err)
		}
		c.publish()
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (c *Controller) edit(row int, measureKey, rawText string) error {
	if c.variant != Table {
		return models.ErrNotEditable
	}
	if !c.ready() {
		return models.ErrDataUnavailable
	}
	if !c.hasMeasure(measureKey) {
		return fmt.Errorf("%w: %q", models.ErrUnknownMeasure, measureKey)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(rawText), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %q", models.ErrInvalidEdit, rawText)
	}

	if row >= 0 && row < c.source.Len() {
		return c.source.WriteRaw(row, measureKey, value)
	}
	if d := c.draftAt(row); d != nil {
		d.measures[measureKey] = value
		return nil
	}
	return models.ErrInvalidRow
}

// OnDimensionSelect records a member choice. An empty rowKey addresses the widget-wide control
// of the dimension; otherwise the choice belongs to that row. The data source is never mutated.
func (c *Controller) OnDimensionSelect(rowKey, dimensionKey, memberID string) (err error) {
	doErr := c.do(func() {
		if !c.ready() {
			err = models.ErrDataUnavailable
			return
		}
		if !c.hasDimension(dimensionKey) {
			err = fmt.Errorf("%w: %q", models.ErrUnknownDimension, dimensionKey)
			return
		}
		if rowKey == "" {
			c.selection.SetDimensionValue(dimensionKey, memberID)
		} else {
			if !c.hasRowKey(rowKey) {
				err = fmt.Errorf("%w: %q", models.ErrInvalidRow, rowKey)
				return
			}
			c.selection.SetRowValue(rowKey, dimensionKey, memberID)
		}
		c.notes.put(c.ctx.Done(), selectionChanged(rowKey, dimensionKey, memberID))
		c.publish()
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// ToggleRowSelection flips the selection of a row and returns its new state.
func (c *Controller) ToggleRowSelection(row int) (selected bool, err error) {
	doErr := c.do(func() {
		if !c.ready() {
			err = models.ErrDataUnavailable
			return
		}
		if row < 0 || row >= c.rowCount() {
			err = models.ErrInvalidRow
			return
		}
		selected = c.selection.ToggleRow(row)
		c.notes.put(c.ctx.Done(), rowSelectionChanged(row, selected))
		c.publish()
	})
	if doErr != nil {
		return false, doErr
	}
	return selected, err
}

// The methods below run on the loop only.

func (c *Controller) resolveCatalog() {
	c.dimensions, c.measures = nil, nil
	if c.source == nil {
		return
	}
	meta := c.source.Meta()

	var diags []models.Diagnostic
	c.dimensions, diags = dimension_catalog.ResolveDimensions(meta)
	if c.variant == Table {
		var measureDiags []models.Diagnostic
		c.measures, measureDiags = dimension_catalog.ResolveMeasures(meta)
		diags = append(diags, measureDiags...)
	}
	for _, d := range diags {
		c.diags.put(c.ctx.Done(), d)
	}
}

// ready reports whether the source had loaded when last bound, so that members may be fetched
// and the user may interact with the rows.
func (c *Controller) ready() bool {
	return c.source != nil && c.state == models.StateSuccess
}

// fetchMissing issues a fetch for every control neither resolved nor in flight.
func (c *Controller) fetchMissing() {
	if !c.ready() {
		return
	}
	for _, dim := range c.dimensions {
		c.fetch("", dim)
	}
	for _, d := range c.drafts {
		for _, dim := range c.dimensions {
			c.fetch(d.key, dim)
		}
	}
}

// fetch resolves the members of one control on its own goroutine. Results are tagged with
// the current generation and dropped if the source has been rebound by the time they land.
func (c *Controller) fetch(row string, dim models.ResolvedDimension) {
	key := controlKey{row: row, dimension: dim.Key}
	if _, ok := c.controls[key]; ok {
		return
	}
	c.controls[key] = &control{inFlight: true}

	generation, source := c.generation, c.source
	go func() {
		members, err := c.resolver.Resolve(c.ctx, source, dim.Key)
		c.post(func() {
			c.onMembers(generation, key, members, err)
		})
	}()
}

func (c *Controller) onMembers(generation uint64, key controlKey, members []models.Member, err error) {
	if generation != c.generation {
		c.diagnose(models.StaleResult, key.dimension, -1, nil)
		return
	}
	ctl, ok := c.controls[key]
	if !ok {
		return
	}

	if err != nil {
		kind := models.FetchFailed
		if errors.Is(err, models.ErrDataUnavailable) {
			kind = models.DataUnavailable
		}
		c.diagnose(kind, key.dimension, -1, err)
		members = nil
	}
	ctl.members = append([]models.Member{}, members...)
	ctl.loaded = true
	ctl.inFlight = false
	c.publish()
}

func (c *Controller) diagnose(kind models.DiagnosticKind, key string, row int, err error) {
	c.diags.put(c.ctx.Done(), models.Diagnostic{Kind: kind, Key: key, Row: row, Err: err})
}

// publish sends the current plan, replacing any plan the consumer has not yet taken.
func (c *Controller) publish() {
	plan := c.plan()
	select {
	case c.plans <- plan:
		return
	default:
	}
	select {
	case <-c.plans:
	default:
	}
	c.plans <- plan
}

func (c *Controller) recordCount() int {
	if c.variant != Table || c.source == nil {
		return 0
	}
	return c.source.Len()
}

func (c *Controller) rowCount() int {
	return c.recordCount() + len(c.drafts)
}

func (c *Controller) draftAt(row int) *draft {
	for _, d := range c.drafts {
		if d.index == row {
			return d
		}
	}
	return nil
}

func (c *Controller) hasRowKey(key string) bool {
	row, err := strconv.Atoi(key)
	return err == nil && row >= 0 && (row < c.recordCount() || c.draftAt(row) != nil)
}

func (c *Controller) hasDimension(key string) bool {
	for _, dim := range c.dimensions {
		if dim.Key == key {
			return true
		}
	}
	return false
}

func (c *Controller) hasMeasure(key string) bool {
	for _, m := range c.measures {
		if m.Key == key {
			return true
		}
	}
	return false
}

// plan projects the current state. It allocates fresh slices throughout so that the plan
// shares nothing with the loop's state.
func (c *Controller) plan() RenderPlan {
	if !c.ready() {
		return RenderPlan{Kind: Loading}
	}
	if len(c.dimensions) == 0 {
		return RenderPlan{Kind: EmptyDimensions}
	}
	if c.variant == Table && len(c.measures) == 0 {
		return RenderPlan{Kind: EmptyMeasures}
	}

	ready := &ReadyPlan{
		Dimensions: make([]DimensionControl, 0, len(c.dimensions)),
		Measures:   append([]models.ResolvedMeasure{}, c.measures...),
		Rows:       []Row{},
		Selection:  c.selection.SelectedIndices(),
	}
	for _, dim := range c.dimensions {
		selected, _ := c.selection.DimensionValue(dim.Key)
		ready.Dimensions = append(ready.Dimensions, c.controlFor("", dim, selected))
	}

	for i := 0; i < c.recordCount(); i++ {
		ready.Rows = append(ready.Rows, c.recordRow(i))
	}
	for _, d := range c.drafts {
		ready.Rows = append(ready.Rows, c.draftRow(d))
	}
	return RenderPlan{Kind: Ready, Ready: ready}
}

func (c *Controller) controlFor(row string, dim models.ResolvedDimension, selected string) DimensionControl {
	dc := DimensionControl{
		Dimension: dim,
		Members:   []models.Member{},
		Selected:  selected,
	}
	if ctl, ok := c.controls[controlKey{row: row, dimension: dim.Key}]; ok && ctl.loaded {
		dc.Members = append(dc.Members, ctl.members...)
		dc.Loaded = true
	}
	return dc
}

func (c *Controller) recordRow(i int) Row {
	key := strconv.Itoa(i)
	row := Row{
		Index:    i,
		Key:      key,
		Selected: c.selection.IsSelected(i),
	}
	for _, dim := range c.dimensions {
		cell, _ := c.source.CellAt(i, dim.Key)
		rd := RowDimension{Key: dim.Key, Value: cell.Identity(c.returnType)}
		if chosen, ok := c.selection.RowValue(key, dim.Key); ok {
			rd.Value = chosen
		}
		row.Dimensions = append(row.Dimensions, rd)
	}
	for _, m := range c.measures {
		cell, _ := c.source.CellAt(i, m.Key)
		rm := RowMeasure{Key: m.Key, Display: cell.Display(), Editable: true}
		if cell.Raw != nil {
			raw := *cell.Raw
			rm.Raw = &raw
		}
		row.Measures = append(row.Measures, rm)
	}
	return row
}

func (c *Controller) draftRow(d *draft) Row {
	row := Row{
		Index:    d.index,
		Key:      d.key,
		Draft:    true,
		Selected: c.selection.IsSelected(d.index),
	}
	for _, dim := range c.dimensions {
		selected, _ := c.selection.RowValue(d.key, dim.Key)
		ctl := c.controlFor(d.key, dim, selected)
		row.Dimensions = append(row.Dimensions, RowDimension{Key: dim.Key, Value: selected, Control: &ctl})
	}
	for _, m := range c.measures {
		rm := RowMeasure{Key: m.Key, Editable: true}
		if v, ok := d.measures[m.Key]; ok {
			raw := v
			rm.Raw = &raw
			rm.Display = strconv.FormatFloat(v, 'f', -1, 64)
		}
		row.Measures = append(row.Measures, rm)
	}
	return row
}
