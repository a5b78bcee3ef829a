package models

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const wireSource = `{
	"state": "success",
	"data": [
		{"region": {"id": "north", "label": "North"}, "revenue": {"raw": 10, "formatted": "10.00"}},
		{"region": {"label": "South"}, "revenue": {"formatted": "n/a"}}
	],
	"metadata": {
		"dimensions": {"region": {"id": "region", "description": "Region"}},
		"mainStructureMembers": {"revenue": {"id": "revenue"}},
		"feeds": {
			"dimensions": {"values": ["region"]},
			"measures": {"values": ["revenue"]}
		}
	}
}`

func TestReadDataSource(t *testing.T) {
	Convey("Given the platform's wire format", t, func() {
		ds, err := ReadDataSource(strings.NewReader(wireSource))
		So(err, ShouldBeNil)

		Convey("Then state, records and metadata decode", func() {
			So(ds.CurrentState(), ShouldEqual, StateSuccess)
			So(ds.Len(), ShouldEqual, 2)
			meta := ds.Meta()
			So(meta.Feeds.Dimensions.Values, ShouldResemble, []string{"region"})
			So(meta.Dimensions["region"].Description, ShouldEqual, "Region")
			So(meta.MainStructureMembers["revenue"].Description, ShouldEqual, "")
		})

		Convey("Then cells keep only the fields that were present", func() {
			cell, ok := ds.CellAt(1, "region")
			So(ok, ShouldBeTrue)
			So(cell.ID, ShouldEqual, "")
			So(cell.Label, ShouldEqual, "South")

			cell, _ = ds.CellAt(1, "revenue")
			So(cell.Raw, ShouldBeNil)
			So(cell.Display(), ShouldEqual, "n/a")
		})

		Convey("Then encoding it again preserves the shape", func() {
			out, err := json.Marshal(ds)
			So(err, ShouldBeNil)
			again, err := ReadDataSource(strings.NewReader(string(out)))
			So(err, ShouldBeNil)
			So(again.Data, ShouldResemble, ds.Data)
			So(again.Meta(), ShouldResemble, ds.Meta())
		})
	})

	Convey("Given malformed input", t, func() {
		_, err := ReadDataSource(strings.NewReader(`{"state": `))
		So(err, ShouldNotBeNil)
	})
}

func TestCellPrecedence(t *testing.T) {
	raw := 12.5
	Convey("Identity prefers id, then label, unless labels were requested", t, func() {
		So(Cell{ID: "n", Label: "North"}.Identity(ReturnID), ShouldEqual, "n")
		So(Cell{Label: "North"}.Identity(ReturnID), ShouldEqual, "North")
		So(Cell{ID: "n", Label: "North"}.Identity(ReturnLabel), ShouldEqual, "North")
		So(Cell{ID: "n"}.Identity(ReturnLabel), ShouldEqual, "n")
		So(Cell{}.Identity(ReturnID), ShouldEqual, "")
	})

	Convey("Display prefers raw over formatted", t, func() {
		So(Cell{Raw: &raw, Formatted: "12.50 EUR"}.Display(), ShouldEqual, "12.5")
		So(Cell{Formatted: "12.50 EUR"}.Display(), ShouldEqual, "12.50 EUR")
		So(Cell{ID: "x"}.Display(), ShouldEqual, "x")
	})
}

func TestDataSourceAccess(t *testing.T) {
	Convey("Given a source without data", t, func() {
		ds := NewDataSource(StateSuccess, nil, nil)

		Convey("Column reports the data as unavailable", func() {
			_, err := ds.Column("region")
			So(err, ShouldEqual, ErrDataUnavailable)
		})

		Convey("Meta is the zero value", func() {
			So(ds.Meta().Feeds.Dimensions.Values, ShouldBeEmpty)
		})

		Convey("WriteRaw rejects every row", func() {
			So(ds.WriteRaw(0, "revenue", 1), ShouldEqual, ErrInvalidRow)
		})
	})

	Convey("Given a source with two records", t, func() {
		first := 1.0
		ds := NewDataSource(StateSuccess, []Record{
			{"region": {ID: "north"}, "revenue": {Raw: &first}},
			{"region": {ID: "south"}, "revenue": {Formatted: "2"}},
		}, nil)

		Convey("WriteRaw replaces only the targeted cell", func() {
			So(ds.WriteRaw(1, "revenue", 12.5), ShouldBeNil)

			cell, _ := ds.CellAt(1, "revenue")
			So(*cell.Raw, ShouldEqual, 12.5)
			So(cell.Formatted, ShouldEqual, "")

			untouched, _ := ds.CellAt(0, "revenue")
			So(*untouched.Raw, ShouldEqual, 1.0)
			region, _ := ds.CellAt(1, "region")
			So(region.ID, ShouldEqual, "south")
		})

		Convey("Concurrent reads and writes do not race", func() {
			wg := sync.WaitGroup{}
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					_ = ds.WriteRaw(i%2, "revenue", float64(i))
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					_, _ = ds.Column("region")
				}
			}()
			wg.Wait()

			column, err := ds.Column("region")
			So(err, ShouldBeNil)
			So(column, ShouldHaveLength, 2)
		})
	})
}

func TestParseReturnType(t *testing.T) {
	Convey("Return types parse case-insensitively with an id default", t, func() {
		rt, err := ParseReturnType("")
		So(err, ShouldBeNil)
		So(rt, ShouldEqual, ReturnID)

		rt, err = ParseReturnType(" Label ")
		So(err, ShouldBeNil)
		So(rt, ShouldEqual, ReturnLabel)

		_, err = ParseReturnType("raw")
		So(errors.Is(err, ErrInvalidReturnType), ShouldBeTrue)
	})
}
