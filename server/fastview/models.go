// fastview implements a builder pattern to implement simple views:
// given an input data format, apply a transformation to a view-model,
// and then multiplex that data to one or more views.
package fastview

import (
	"html/template"
)

// Reserved op keys. Any other key sets the html attribute of that name.
const (
	// TextContent sets ele.textContent.
	TextContent = "textContent"
	// InnerHTML replaces the element's children with server-rendered markup.
	InnerHTML = "innerHTML"
	// Value sets the current value of an input or select, as opposed to its value attribute.
	Value = "value"
)

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attrib keys or one of the reserved keys, values are the strings to which these are set.
	// Example: ('x','123') means 'set attribute 'x' to 123'; ('textContent','abc') means
	// 'set ele.textContent to abc'.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent implements server side views: Parse to add their initial form to a page
// and Updates to obtain the chan by which ele-updates are notified.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse parses the view-component and adds it to the passed parent template, thus inheriting
	// or possibly extending its definition (func-map, etc). It returns the name of the template
	// defined, which must be executed with the component's view-model.
	Parse(*template.Template) (string, error)
}

// MessageHandler receives the raw messages a web client sends back over its websocket.
type MessageHandler func(msg []byte)
