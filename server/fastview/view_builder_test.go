package fastview

import (
	"context"
	"html/template"
	"strconv"
	"testing"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	. "github.com/smartystreets/goconvey/convey"
)

// counterView shows an int view-model as the text of a single element.
type counterView struct {
	id      string
	updates <-chan []EleUpdate
}

func newCounterView(id string) ViewBuilderFunc[int] {
	return func(done <-chan struct{}, counts <-chan int) ViewComponent {
		cv := &counterView{id: id}
		cv.updates = channerics.Convert(done, counts, func(n int) []EleUpdate {
			return []EleUpdate{{EleId: cv.id, Ops: []Op{{Key: TextContent, Value: strconv.Itoa(n)}}}}
		})
		return cv
	}
}

func (cv *counterView) Updates() <-chan []EleUpdate { return cv.updates }

func (cv *counterView) Parse(t *template.Template) (string, error) {
	_, err := t.Parse(`{{ define "` + cv.id + `" }}<span id="` + cv.id + `">{{ . }}</span>{{ end }}`)
	return cv.id, err
}

func receive(ch <-chan []EleUpdate) []EleUpdate {
	select {
	case updates := <-ch:
		return updates
	case <-time.After(time.Second):
		return nil
	}
}

func TestViewBuilder(t *testing.T) {
	Convey("Given a builder", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		input := make(chan string)
		toLen := func(s string) int { return len(s) }

		Convey("Building without views fails", func() {
			_, err := NewViewBuilder[string, int]().WithModel(input, toLen).Build()
			So(err, ShouldEqual, ErrNoViews)
		})

		Convey("Building without a model fails", func() {
			_, err := NewViewBuilder[string, int]().WithView(newCounterView("a")).Build()
			So(err, ShouldEqual, ErrNoModel)
		})

		Convey("Every view receives every converted model", func() {
			views, err := NewViewBuilder[string, int]().
				WithContext(ctx).
				WithModel(input, toLen).
				WithView(newCounterView("a")).
				WithView(newCounterView("b")).
				Build()
			So(err, ShouldBeNil)
			So(views, ShouldHaveLength, 2)

			go func() { input <- "four" }()
			a, b := make(chan []EleUpdate, 1), make(chan []EleUpdate, 1)
			go func() { a <- receive(views[0].Updates()) }()
			go func() { b <- receive(views[1].Updates()) }()

			So(<-a, ShouldResemble, []EleUpdate{{EleId: "a", Ops: []Op{{Key: TextContent, Value: "4"}}}})
			So(<-b, ShouldResemble, []EleUpdate{{EleId: "b", Ops: []Op{{Key: TextContent, Value: "4"}}}})
		})

		Convey("Model converts a single value for the initial render", func() {
			vb := NewViewBuilder[string, int]().WithModel(input, toLen)
			vm, err := vb.Model("abc")
			So(err, ShouldBeNil)
			So(vm, ShouldEqual, 3)

			views, _ := vb.WithContext(ctx).WithView(newCounterView("c")).Build()
			page := template.New("page")
			name, err := views[0].Parse(page)
			So(err, ShouldBeNil)
			_, err = page.Parse(`{{ template "` + name + `" . }}`)
			So(err, ShouldBeNil)
		})
	})
}
