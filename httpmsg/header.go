package httpmsg

import "strings"

// Field is a single header line, split at the first colon.
type Field struct {
	Name  string
	Value string
}

// Header is the ordered list of fields from a message's header block.
// Duplicate names are preserved in the order they appeared on the wire.
type Header []Field

// Get returns the value of the first field matching name, comparing
// case-insensitively.
func (h Header) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}

	return "", false
}

// Values returns the values of every field matching name, in order.
func (h Header) Values(name string) []string {
	var values []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}

	return values
}

// Add appends a field to the end of the header block.
func (h *Header) Add(name, value string) {
	*h = append(*h, Field{name, value})
}

// Set replaces the first field matching name, keeping its position, and
// removes any later duplicates. If no field matches, the field is appended.
func (h *Header) Set(name, value string) {
	replaced := false
	out := (*h)[:0]

	for _, f := range *h {
		if strings.EqualFold(f.Name, name) {
			if replaced {
				continue
			}
			f.Value = value
			replaced = true
		}
		out = append(out, f)
	}

	if !replaced {
		out = append(out, Field{name, value})
	}

	*h = out
}

// Del removes every field matching name.
func (h *Header) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}

	*h = out
}
