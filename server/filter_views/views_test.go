package filter_views

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"testing"
	"time"

	"dimfilter/binding"
	"dimfilter/models"
	"dimfilter/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

func raw(v float64) *float64 { return &v }

func readyPlan() binding.RenderPlan {
	region := models.ResolvedDimension{ID: "REGION", Description: "Region", Key: "region"}
	draftControl := binding.DimensionControl{
		Dimension: region,
		Members:   []models.Member{{ID: "north", Label: "North"}},
		Loaded:    true,
		Selected:  "north",
	}
	return binding.RenderPlan{
		Kind: binding.Ready,
		Ready: &binding.ReadyPlan{
			Dimensions: []binding.DimensionControl{{
				Dimension: region,
				Members:   []models.Member{{ID: "north", Label: "North"}, {ID: "south", Label: "<South>"}},
				Loaded:    true,
				Selected:  "south",
			}},
			Measures: []models.ResolvedMeasure{{ID: "SALES", Description: "Sales", Key: "sales"}},
			Rows: []binding.Row{
				{
					Index:      0,
					Key:        "0",
					Selected:   true,
					Dimensions: []binding.RowDimension{{Key: "region", Value: "north"}},
					Measures:   []binding.RowMeasure{{Key: "sales", Raw: raw(12.5), Display: "12.5", Editable: true}},
				},
				{
					Index:      1,
					Key:        "1",
					Draft:      true,
					Dimensions: []binding.RowDimension{{Key: "region", Value: "north", Control: &draftControl}},
					Measures:   []binding.RowMeasure{{Key: "sales", Editable: true}},
				},
			},
			Selection: []int{0},
		},
	}
}

func TestConvert(t *testing.T) {
	Convey("Plans that are not ready carry a message only", t, func() {
		for kind, message := range map[binding.PlanKind]string{
			binding.Loading:         LoadingMessage,
			binding.EmptyDimensions: EmptyDimensionsMessage,
			binding.EmptyMeasures:   EmptyMeasuresMessage,
		} {
			m := Convert(binding.RenderPlan{Kind: kind})
			So(m.Message, ShouldEqual, message)
			So(m.Kind, ShouldEqual, kind.String())
			So(m.Ready, ShouldBeFalse)
			So(m.Controls, ShouldBeEmpty)
		}
	})

	Convey("Given a ready plan", t, func() {
		m := Convert(readyPlan())

		Convey("Widget-wide controls mark the selected member", func() {
			So(m.Ready, ShouldBeTrue)
			So(m.Controls, ShouldHaveLength, 1)
			ctl := m.Controls[0]
			So(ctl.RowKey, ShouldEqual, "")
			So(ctl.Label, ShouldEqual, "Region")
			So(ctl.Options, ShouldResemble, []Option{
				{Value: "north", Label: "North"},
				{Value: "south", Label: "<South>", Selected: true},
			})
		})

		Convey("Rows keep their values, and added rows their own controls", func() {
			So(m.Rows, ShouldHaveLength, 2)
			So(m.Rows[0].Dimensions[0], ShouldResemble, DimensionCell{Text: "north"})
			So(m.Rows[0].Measures[0], ShouldResemble, MeasureCell{Row: 0, Key: "sales", Value: "12.5", Editable: true})

			draft := m.Rows[1]
			So(draft.Draft, ShouldBeTrue)
			So(draft.Dimensions[0].Control, ShouldNotBeNil)
			So(draft.Dimensions[0].Control.RowKey, ShouldEqual, "1")
			So(draft.Dimensions[0].Control.Options[0].Selected, ShouldBeTrue)
		})
	})
}

func fragment(view fastview.ViewComponent, m Model) string {
	page := template.New("page")
	name, err := view.Parse(page)
	So(err, ShouldBeNil)
	var buf bytes.Buffer
	So(page.ExecuteTemplate(&buf, name, m), ShouldBeNil)
	return buf.String()
}

func TestViews(t *testing.T) {
	Convey("Given the widget views", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		vms := make(chan Model)
		m := Convert(readyPlan())

		Convey("The dropdown view renders escaped options", func() {
			html := fragment(NewDropdownView(ctx.Done(), vms), m)
			So(html, ShouldContainSubstring, `id="dropdowns"`)
			So(html, ShouldContainSubstring, `data-dimension="region"`)
			So(html, ShouldContainSubstring, `&lt;South&gt;`)
			So(html, ShouldNotContainSubstring, `<South>`)
		})

		Convey("The table view renders rows with editable measures", func() {
			html := fragment(NewTableView(ctx.Done(), vms), m)
			So(html, ShouldContainSubstring, `data-measure="sales"`)
			So(html, ShouldContainSubstring, `value="12.5"`)
			So(html, ShouldContainSubstring, `data-draft="true"`)
			So(html, ShouldContainSubstring, `checked`)
			So(html, ShouldContainSubstring, `Add row`)
		})

		Convey("The table view is empty while loading", func() {
			html := fragment(NewTableView(ctx.Done(), vms), Convert(binding.RenderPlan{Kind: binding.Loading}))
			So(html, ShouldNotContainSubstring, "<table>")
			So(html, ShouldNotContainSubstring, "Add row")
		})

		Convey("Updates replace the view's inner html", func() {
			view := NewDropdownView(ctx.Done(), vms)
			go func() { vms <- m }()

			select {
			case updates := <-view.Updates():
				So(updates, ShouldHaveLength, 1)
				So(updates[0].EleId, ShouldEqual, "dropdowns")
				So(updates[0].Ops[0].Key, ShouldEqual, fastview.InnerHTML)
				So(strings.Contains(updates[0].Ops[0].Value, `value="south" selected`), ShouldBeTrue)
			case <-time.After(time.Second):
				So("no update", ShouldBeEmpty)
			}
		})

		Convey("The status view sets its text", func() {
			view := NewStatusView(ctx.Done(), vms)
			go func() { vms <- Convert(binding.RenderPlan{Kind: binding.EmptyDimensions}) }()

			updates := <-view.Updates()
			So(updates[0].Ops, ShouldContain, fastview.Op{Key: fastview.TextContent, Value: EmptyDimensionsMessage})
		})
	})
}
