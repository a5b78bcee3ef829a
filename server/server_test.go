package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"dimfilter/binding"
	"dimfilter/config"
	"dimfilter/member_resolver"
	"dimfilter/models"

	"github.com/ONSdigital/dp-healthcheck/healthcheck"
	. "github.com/smartystreets/goconvey/convey"
)

// healthCheckStub records the checks added to it and runs them on demand.
type healthCheckStub struct {
	checkers map[string]healthcheck.Checker
}

func (hc *healthCheckStub) Handler(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
}
func (hc *healthCheckStub) Start(ctx context.Context) {}
func (hc *healthCheckStub) Stop()                     {}
func (hc *healthCheckStub) AddAndGetCheck(name string, checker healthcheck.Checker) (*healthcheck.Check, error) {
	hc.checkers[name] = checker
	return nil, nil
}

func fixture() *models.DataSource {
	f, err := os.Open("../testdata/datasource.json")
	So(err, ShouldBeNil)
	defer f.Close()
	ds, err := models.ReadDataSource(f)
	So(err, ShouldBeNil)
	return ds
}

func request(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// readyPlan polls the plan endpoint until every widget-wide control has loaded.
func readyPlan(h http.Handler) binding.RenderPlan {
	deadline := time.Now().Add(2 * time.Second)
	var plan binding.RenderPlan
	for time.Now().Before(deadline) {
		plan = binding.RenderPlan{}
		rec := request(h, http.MethodGet, "/plan", "")
		_ = json.Unmarshal(rec.Body.Bytes(), &plan)
		if plan.Ready != nil && len(plan.Ready.Dimensions) > 0 && plan.Ready.Dimensions[0].Loaded && plan.Ready.Dimensions[1].Loaded {
			return plan
		}
		time.Sleep(5 * time.Millisecond)
	}
	return plan
}

func TestServer(t *testing.T) {
	Convey("Given a table widget host", t, func() {
		os.Clearenv()
		cfg, err := config.Get()
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		controller := binding.New(ctx, member_resolver.NewScan(models.ReturnID), binding.WithVariant(binding.Table))
		hc := &healthCheckStub{checkers: map[string]healthcheck.Checker{}}
		s, err := New(ctx, cfg, controller, hc)
		So(err, ShouldBeNil)
		Reset(func() {
			controller.Close()
			cancel()
		})
		h := s.Handler()

		Convey("The binding health check is critical until a source is bound", func() {
			state := healthcheck.NewCheckState("widget binding")
			So(hc.checkers["widget binding"](ctx, state), ShouldBeNil)
			So(state.Status(), ShouldEqual, healthcheck.StatusCritical)
		})

		Convey("The plan is loading before any source is bound", func() {
			rec := request(h, http.MethodGet, "/plan", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"kind":"loading"`)
		})

		Convey("Advancing the state of an unbound source is rejected", func() {
			rec := request(h, http.MethodPut, "/datasource/state", `{"state":"success"}`)
			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("A malformed data source is rejected", func() {
			rec := request(h, http.MethodPost, "/datasource", `{"state":`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a data source is posted", func() {
			body, err := os.ReadFile("../testdata/datasource.json")
			So(err, ShouldBeNil)
			rec := request(h, http.MethodPost, "/datasource", string(body))
			So(rec.Code, ShouldEqual, http.StatusCreated)
			plan := readyPlan(h)

			Convey("Then the plan is ready with one control per dimension", func() {
				So(plan.Kind, ShouldEqual, binding.Ready)
				region, ok := plan.Ready.Control("region")
				So(ok, ShouldBeTrue)
				So(region.Dimension.Description, ShouldEqual, "Sales region")
				So(len(region.Members), ShouldEqual, 3)
				So(plan.Ready.Rows, ShouldHaveLength, 4)
			})

			Convey("Then the binding health check is ok", func() {
				state := healthcheck.NewCheckState("widget binding")
				So(hc.checkers["widget binding"](ctx, state), ShouldBeNil)
				So(state.Status(), ShouldEqual, healthcheck.StatusOK)
			})

			Convey("Then a measure edit is written to the bound source", func() {
				rec := request(h, http.MethodPut, "/rows/1/measures/sales", `{"value":"12.5"}`)
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				cell, _ := s.Source().CellAt(1, "sales")
				So(*cell.Raw, ShouldEqual, 12.5)
			})

			Convey("Then a non-numeric edit is a bad request", func() {
				rec := request(h, http.MethodPut, "/rows/1/measures/sales", `{"value":"abc"}`)
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				cell, _ := s.Source().CellAt(1, "sales")
				So(*cell.Raw, ShouldEqual, 950.5)
			})

			Convey("Then edits on unknown rows are not found", func() {
				rec := request(h, http.MethodPut, "/rows/40/measures/sales", `{"value":"1"}`)
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then rows toggle", func() {
				rec := request(h, http.MethodPost, "/rows/2/toggle", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"selected":true`)
			})

			Convey("Then added rows follow the records", func() {
				rec := request(h, http.MethodPost, "/rows", "")
				So(rec.Code, ShouldEqual, http.StatusCreated)
				So(rec.Body.String(), ShouldContainSubstring, `"index":4`)
			})

			Convey("Then selections on known dimensions are accepted", func() {
				rec := request(h, http.MethodPost, "/selections", `{"dimensionKey":"region","memberId":"north"}`)
				So(rec.Code, ShouldEqual, http.StatusNoContent)

				rec = request(h, http.MethodPost, "/selections", `{"dimensionKey":"channel","memberId":"web"}`)
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then moving the source back to pending shows loading", func() {
				rec := request(h, http.MethodPut, "/datasource/state", `{"state":"pending"}`)
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "loading")
			})

			Convey("Then the index page renders the current plan", func() {
				// The hub receives plans asynchronously.
				time.Sleep(50 * time.Millisecond)
				rec := request(h, http.MethodGet, "/", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "text/html")
				So(rec.Body.String(), ShouldContainSubstring, `id="table"`)
			})
		})

		Convey("User events from a page are dispatched to the widget", func() {
			So(s.Bind(fixture()), ShouldBeNil)
			readyPlan(h)

			s.onMessage(ctx)([]byte(`{"type":"addRow"}`))
			s.onMessage(ctx)([]byte(`{"type":"toggle","row":0}`))
			s.onMessage(ctx)([]byte(`{"type":"edit","row":0,"measureKey":"units","value":"41"}`))
			s.onMessage(ctx)([]byte(`not json`))

			plan, err := controller.Render()
			So(err, ShouldBeNil)
			So(plan.Ready.Rows, ShouldHaveLength, 5)
			So(plan.Ready.Selection, ShouldResemble, []int{0})
			cell, _ := s.Source().CellAt(0, "units")
			So(*cell.Raw, ShouldEqual, 41)

			So(s.dispatch(UserEvent{Type: "zoom"}), ShouldNotBeNil)
		})

		Convey("The health endpoint is served", func() {
			rec := request(h, http.MethodGet, "/health", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestPlanHub(t *testing.T) {
	Convey("Given a plan hub", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		plans := make(chan binding.RenderPlan)
		hub := newPlanHub(ctx.Done(), plans)

		Convey("A subscriber is primed with the latest plan", func() {
			sub, unsubscribe := hub.Subscribe()
			defer unsubscribe()
			So((<-sub).Kind, ShouldEqual, binding.Loading)
		})

		Convey("A slow subscriber only sees the latest plan", func() {
			sub, unsubscribe := hub.Subscribe()
			defer unsubscribe()
			plans <- binding.RenderPlan{Kind: binding.EmptyDimensions}
			plans <- binding.RenderPlan{Kind: binding.EmptyMeasures}

			deadline := time.Now().Add(2 * time.Second)
			for hub.Latest().Kind != binding.EmptyMeasures && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			So(hub.Latest().Kind, ShouldEqual, binding.EmptyMeasures)

			// The subscription holds a single plan, replaced by each newer one.
			So(len(sub), ShouldEqual, 1)
			So((<-sub).Kind, ShouldEqual, binding.EmptyMeasures)
		})

		Convey("Subscriptions close with the hub", func() {
			sub, unsubscribe := hub.Subscribe()
			<-sub
			cancel()
			_, open := <-sub
			So(open, ShouldBeFalse)
			unsubscribe()
		})
	})
}
