package filter_views

import (
	"bytes"
	"html/template"

	"dimfilter/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// fragmentView is a view whose element is re-rendered whole on every update: the server
// executes the fragment template and the page swaps the element's inner html.
type fragmentView struct {
	id       string
	body     string
	fragment *template.Template
	updates  <-chan []fastview.EleUpdate
}

func newFragmentView(
	done <-chan struct{},
	models <-chan Model,
	id string,
	body string,
) *fragmentView {
	fv := &fragmentView{
		id:       template.HTMLEscapeString(id),
		body:     body,
		fragment: template.Must(template.New("fragment").Parse(body)),
	}
	fv.updates = channerics.Convert(done, models, fv.onUpdate)
	return fv
}

func (fv *fragmentView) Updates() <-chan []fastview.EleUpdate {
	return fv.updates
}

func (fv *fragmentView) onUpdate(m Model) []fastview.EleUpdate {
	var buf bytes.Buffer
	if err := fv.fragment.ExecuteTemplate(&buf, fv.id+"_body", m); err != nil {
		buf.Reset()
		buf.WriteString(template.HTMLEscapeString(err.Error()))
	}
	return []fastview.EleUpdate{
		{
			EleId: fv.id,
			Ops:   []fastview.Op{{Key: fastview.InnerHTML, Value: buf.String()}},
		},
	}
}

// Parse defines the view's template, and its body, in the parent.
func (fv *fragmentView) Parse(t *template.Template) (name string, err error) {
	name = fv.id
	if _, err = t.Parse(fv.body); err != nil {
		return
	}
	_, err = t.Parse(`{{ define "` + name + `" }}<div id="` + fv.id + `">{{ template "` + fv.id + `_body" . }}</div>{{ end }}`)
	return
}

// controlTemplate renders a Control as a select element; name keeps its definition unique per view.
func controlTemplate(name string) string {
	return `{{ define "` + name + `" }}
<select data-row="{{ .RowKey }}" data-dimension="{{ .DimensionKey }}" onchange="fastview.select(this)"{{ if not .Loaded }} disabled{{ end }}>
	<option value="">{{ if .Loaded }}(all){{ else }}loading…{{ end }}</option>
	{{ range .Options }}<option value="{{ .Value }}"{{ if .Selected }} selected{{ end }}>{{ .Label }}</option>{{ end }}
</select>
{{ end }}`
}

// StatusView shows the loading and configuration messages.
type StatusView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatusView(done <-chan struct{}, models <-chan Model) *StatusView {
	sv := &StatusView{id: "status"}
	sv.updates = channerics.Convert(done, models, sv.onUpdate)
	return sv
}

func (sv *StatusView) Updates() <-chan []fastview.EleUpdate {
	return sv.updates
}

func (sv *StatusView) onUpdate(m Model) []fastview.EleUpdate {
	return []fastview.EleUpdate{
		{
			EleId: sv.id,
			Ops: []fastview.Op{
				{Key: fastview.TextContent, Value: m.Message},
				{Key: "data-kind", Value: m.Kind},
			},
		},
	}
}

func (sv *StatusView) Parse(t *template.Template) (name string, err error) {
	name = sv.id
	_, err = t.Parse(`{{ define "` + name + `" }}<p id="` + sv.id + `" class="status" data-kind="{{ .Kind }}">{{ .Message }}</p>{{ end }}`)
	return
}

// NewDropdownView returns the view of the widget-wide selection controls.
func NewDropdownView(done <-chan struct{}, models <-chan Model) fastview.ViewComponent {
	return newFragmentView(done, models, "dropdowns", controlTemplate("dropdowns_control")+`
{{ define "dropdowns_body" }}
{{ range .Controls }}
<label class="control">{{ .Label }} {{ template "dropdowns_control" . }}</label>
{{ end }}
{{ end }}`)
}

// NewTableView returns the view of the rows: records with editable measures, and added rows
// with their own controls.
func NewTableView(done <-chan struct{}, models <-chan Model) fastview.ViewComponent {
	return newFragmentView(done, models, "table", controlTemplate("table_control")+`
{{ define "table_body" }}
{{ if .Rows }}
<table>
	<thead><tr><th></th>{{ range .Dimensions }}<th>{{ .Label }}</th>{{ end }}{{ range .Measures }}<th>{{ .Label }}</th>{{ end }}</tr></thead>
	<tbody>
	{{ range .Rows }}
	<tr data-row="{{ .Index }}"{{ if .Selected }} class="selected"{{ end }}{{ if .Draft }} data-draft="true"{{ end }}>
		<td><input type="checkbox" data-row="{{ .Index }}" onchange="fastview.toggle(this)"{{ if .Selected }} checked{{ end }}></td>
		{{ range .Dimensions }}<td>{{ if .Control }}{{ template "table_control" .Control }}{{ else }}{{ .Text }}{{ end }}</td>{{ end }}
		{{ range .Measures }}<td><input type="text" data-row="{{ .Row }}" data-measure="{{ .Key }}" value="{{ .Value }}" onchange="fastview.edit(this)"{{ if not .Editable }} readonly{{ end }}></td>{{ end }}
	</tr>
	{{ end }}
	</tbody>
</table>
{{ end }}
{{ if .Ready }}<button type="button" onclick="fastview.addRow()">Add row</button>{{ end }}
{{ end }}`)
}
