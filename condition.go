package amqp

// Condition is a local or remote error condition attached to an
// endpoint. It is carried on the wire as an AMQP error (name,
// description, info) and is distinct from a Go error: it is state that
// sits on the endpoint until explicitly cleared, not a one-shot return
// value. Grounded on proton-c's pn_condition_t.
type Condition struct {
	Name        string
	Description string
	Info        map[string]interface{}
}

// IsSet reports whether a condition has been recorded.
func (c *Condition) IsSet() bool {
	return c != nil && c.Name != ""
}

// Clear resets the condition to empty, matching pn_condition_clear.
func (c *Condition) Clear() {
	c.Name = ""
	c.Description = ""
	c.Info = nil
}

// copyInto deep-copies c into dst so later mutation of c's Info map
// cannot retroactively change a condition already recorded on an
// endpoint (mirrors pn_condition_copy's value semantics).
func (c *Condition) copyInto(dst *Condition) {
	dst.Name = c.Name
	dst.Description = c.Description
	if c.Info == nil {
		dst.Info = nil
		return
	}
	dst.Info = make(map[string]interface{}, len(c.Info))
	for k, v := range c.Info {
		dst.Info[k] = v
	}
}
