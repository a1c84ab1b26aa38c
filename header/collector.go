// Package header reconstructs response header fields from the raw lines
// a transfer delivers one at a time.
//
// Lines are not NUL terminated and carry their CRLF. Header values may be
// split over several lines (RFC 7230 obsolete line folding):
//
//	header-field   = field-name ":" OWS field-value OWS
//	field-value    = *( field-content / obs-fold )
//	obs-fold       = CRLF 1*( SP / HTAB )
//
// Every redirect hop delivers its own status line and header block, only
// the block of the final hop is kept.
package header

import "strings"

// Collector accumulates the header fields of one transfer as
// "Name: value" strings in arrival order.
//
// The zero value is ready to use.
type Collector struct {
	values []string
	status ResponseLine
}

// Add consumes a single raw header line.
//
// A status line drops everything collected so far, a continuation line is
// appended to the last value with a single space, any other non-blank line
// starts a new field. The blank line closing a header block is ignored.
func (c *Collector) Add(line []byte) {
	if IsStatusLine(line) {
		c.values = c.values[:0]
		if err := c.status.Parse(line); err != nil {
			c.status.Reset()
		}
		return
	}

	if IsContinuation(line) {
		// a fold with nothing before it means a status line was missed upstream
		if len(c.values) == 0 {
			panic("BUG: should have at least one existing header value")
		}
		v := trimSpace(line)
		if len(v) == 0 {
			return
		}
		last := len(c.values) - 1
		c.values[last] = c.values[last] + " " + string(v)
		return
	}

	v := trimSpace(line)
	if len(v) == 0 {
		return
	}
	c.values = append(c.values, string(v))
}

// Values the collected "Name: value" fields, the slice is owned by c
func (c *Collector) Values() []string {
	return c.values
}

// Len number of fields collected
func (c *Collector) Len() int {
	return len(c.values)
}

// StatusCode status code of the last status line seen, 0 if none
func (c *Collector) StatusCode() int {
	return c.status.StatusCode()
}

// Get value of the last field named name, the lookup is case-insensitive
func (c *Collector) Get(name string) (string, bool) {
	for i := len(c.values) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(c.values[i], ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Reset forgets every collected field
func (c *Collector) Reset() {
	c.values = c.values[:0]
	c.status.Reset()
}
