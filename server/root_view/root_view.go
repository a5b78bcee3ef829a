package root_view

import (
	"context"
	"html/template"
	"time"

	"dimfilter/binding"
	"dimfilter/server/fastview"
	"dimfilter/server/filter_views"

	channerics "github.com/niceyeti/channerics/channels"
)

// RootView is the main page's index.html, which is the container for all the
// view components, the wiring for their channels, etc.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
	builder *fastview.ViewBuilder[binding.RenderPlan, filter_views.Model]
}

// NewRootView creates the main page and the views it contains, fed by the passed plans.
// Updates to the same element arriving within batchWindow of one another are coalesced.
func NewRootView(
	ctx context.Context,
	plans <-chan binding.RenderPlan,
	batchWindow time.Duration,
) (*RootView, error) {
	builder := fastview.NewViewBuilder[binding.RenderPlan, filter_views.Model]().
		WithContext(ctx).
		WithModel(plans, filter_views.Convert)
	views, err := builder.
		WithView(func(
			done <-chan struct{},
			vms <-chan filter_views.Model) fastview.ViewComponent {
			return filter_views.NewStatusView(done, vms)
		}).
		WithView(filter_views.NewDropdownView).
		WithView(filter_views.NewTableView).
		Build()
	if err != nil {
		return nil, err
	}

	return &RootView{
		views:   views,
		updates: fanIn(ctx.Done(), views, batchWindow),
		builder: builder,
	}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Model converts a plan into the data the page template executes with.
func (rv *RootView) Model(plan binding.RenderPlan) (filter_views.Model, error) {
	return rv.builder.Model(plan)
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	viewTemplates := []string{}
	for _, vc := range rv.views {
		if tname, parseErr := vc.Parse(parent); parseErr != nil {
			err = parseErr
			return
		} else {
			viewTemplates = append(viewTemplates, tname)
		}
	}

	// Specify the nested templates
	var bodySpec string
	for _, tname := range viewTemplates {
		bodySpec += (`{{ template "` + tname + `" . }}`)
	}

	// The main template bootstraps the rest: sets up client websocket and updates, aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<meta charset="utf-8">
			<link rel="icon" href="data:,">
			<style>
				.status:empty { display: none; }
				tr.selected { background: #eef4ff; }
				label.control { margin-right: 1em; }
			</style>
			<!--This is the client bootstrap code by which the server pushes new data to the view via websocket,
				and by which user events are sent back.-->
			<script>
				const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				const send = function (msg) {
					ws.send(JSON.stringify(msg));
				};

				const fastview = {
					select: (el) => send({type: "select", rowKey: el.dataset.row, dimensionKey: el.dataset.dimension, memberId: el.value}),
					toggle: (el) => send({type: "toggle", row: Number(el.dataset.row)}),
					edit: (el) => send({type: "edit", row: Number(el.dataset.row), measureKey: el.dataset.measure, value: el.value}),
					addRow: () => send({type: "addRow"}),
				};

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else if (op.Key === "innerHTML") {
								ele.innerHTML = op.Value;
							} else if (op.Key === "value") {
								ele.value = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = parent.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single channel,
// and throttles its output.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
	window time.Duration,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		window)
}

// batchify batches within the passed time frame before sending, over-writing previously
// received values for the same ele-id. This ensures that redundant updates for the
// same ele-id are not sent, and only the latest values are sent. A pending batch is always
// flushed at the end of its window, even if nothing else arrives.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	window time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		order := []string{}
		var flush <-chan time.Time
		input := channerics.OrDone(done, source)
		for {
			select {
			case updates, ok := <-input:
				if !ok {
					return
				}
				// Intentionally overwrites pre-existing values for an ele-id within this batch's time frame.
				for _, update := range updates {
					if _, seen := data[update.EleId]; !seen {
						order = append(order, update.EleId)
					}
					data[update.EleId] = update
				}
				if flush == nil && len(data) > 0 {
					flush = time.After(window)
				}
			case <-flush:
				batch := make([]fastview.EleUpdate, 0, len(order))
				for _, id := range order {
					batch = append(batch, data[id])
				}
				select {
				case output <- batch:
				case <-done:
					return
				}
				data = map[string]fastview.EleUpdate{}
				order = order[:0]
				flush = nil
			}
		}
	}()

	return output
}
