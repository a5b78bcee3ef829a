package root_view

import (
	"bytes"
	"context"
	"html/template"
	"testing"
	"time"

	"dimfilter/binding"
	"dimfilter/server/fastview"
	"dimfilter/server/filter_views"

	. "github.com/smartystreets/goconvey/convey"
)

func textUpdate(id, text string) fastview.EleUpdate {
	return fastview.EleUpdate{EleId: id, Ops: []fastview.Op{{Key: fastview.TextContent, Value: text}}}
}

func TestBatchify(t *testing.T) {
	Convey("Given a batching stage", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		source := make(chan []fastview.EleUpdate)
		output := batchify(ctx.Done(), source, 50*time.Millisecond)

		Convey("Updates within a window are coalesced per element, latest wins", func() {
			source <- []fastview.EleUpdate{textUpdate("a", "1"), textUpdate("b", "1")}
			source <- []fastview.EleUpdate{textUpdate("a", "2")}

			select {
			case batch := <-output:
				So(batch, ShouldResemble, []fastview.EleUpdate{textUpdate("a", "2"), textUpdate("b", "1")})
			case <-time.After(time.Second):
				So("no batch", ShouldBeEmpty)
			}
		})

		Convey("A lone update is flushed at the end of its window", func() {
			source <- []fastview.EleUpdate{textUpdate("a", "1")}
			select {
			case batch := <-output:
				So(batch, ShouldHaveLength, 1)
			case <-time.After(time.Second):
				So("no batch", ShouldBeEmpty)
			}
		})

		Convey("The output closes when done", func() {
			cancel()
			_, ok := <-output
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRootView(t *testing.T) {
	Convey("Given a root view", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		plans := make(chan binding.RenderPlan)
		rv, err := NewRootView(ctx, plans, 10*time.Millisecond)
		So(err, ShouldBeNil)

		Convey("The page renders every view around the current model", func() {
			page := template.New("index.html")
			name, err := rv.Parse(page)
			So(err, ShouldBeNil)

			vm, err := rv.Model(binding.RenderPlan{Kind: binding.Loading})
			So(err, ShouldBeNil)

			var buf bytes.Buffer
			So(page.ExecuteTemplate(&buf, name, vm), ShouldBeNil)
			html := buf.String()
			So(html, ShouldContainSubstring, `id="status"`)
			So(html, ShouldContainSubstring, filter_views.LoadingMessage)
			So(html, ShouldContainSubstring, `id="dropdowns"`)
			So(html, ShouldContainSubstring, `id="table"`)
			So(html, ShouldContainSubstring, `new WebSocket`)
		})

		Convey("A plan reaches the page as one batch of updates", func() {
			go func() { plans <- binding.RenderPlan{Kind: binding.EmptyDimensions} }()

			seen := map[string]bool{}
			deadline := time.After(2 * time.Second)
			for len(seen) < 3 {
				select {
				case batch := <-rv.Updates():
					for _, update := range batch {
						seen[update.EleId] = true
					}
				case <-deadline:
					So(seen, ShouldHaveLength, 3)
					return
				}
			}
			So(seen, ShouldResemble, map[string]bool{"status": true, "dropdowns": true, "table": true})
		})
	})
}
