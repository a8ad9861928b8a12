package schema

// Issue is one validation failure. Field is empty for form-level messages.
type Issue struct {
	Field   FieldID `json:"field,omitempty"`
	Message string  `json:"message"`
}

// Result is the outcome of validating a set of Values. A field carries at
// most one message; additional failures for the same field are dropped.
type Result struct {
	Issues []Issue `json:"issues,omitempty"`
}

// Valid reports whether no issue was recorded.
func (r Result) Valid() bool { return len(r.Issues) == 0 }

// For returns the message attached to id.
func (r Result) For(id FieldID) (string, bool) {
	for _, issue := range r.Issues {
		if issue.Field == id && id != "" {
			return issue.Message, true
		}
	}
	return "", false
}

// Errors returns the field-level messages keyed by field.
func (r Result) Errors() map[FieldID]string {
	if r.Valid() {
		return nil
	}
	out := make(map[FieldID]string, len(r.Issues))
	for _, issue := range r.Issues {
		if issue.Field == "" {
			continue
		}
		out[issue.Field] = issue.Message
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Form returns the messages not attached to any field.
func (r Result) Form() []string {
	var out []string
	for _, issue := range r.Issues {
		if issue.Field == "" {
			out = append(out, issue.Message)
		}
	}
	return out
}

// collector builds a Result scoped to one form so issues can only land on
// declared fields; anything else is kept at form level.
type collector struct {
	form   *FormSchema
	result Result
}

func (c *collector) field(id FieldID, message string) {
	if message == "" {
		return
	}
	if !c.form.Has(id) {
		c.formLevel(message)
		return
	}
	if _, exists := c.result.For(id); exists {
		return
	}
	c.result.Issues = append(c.result.Issues, Issue{Field: id, Message: message})
}

func (c *collector) formLevel(message string) {
	for _, issue := range c.result.Issues {
		if issue.Field == "" && issue.Message == message {
			return
		}
	}
	c.result.Issues = append(c.result.Issues, Issue{Message: message})
}

func (c *collector) has(id FieldID) bool {
	_, ok := c.result.For(id)
	return ok
}
