package rules

// FieldErrors collects every failure attributed to one field.
type FieldErrors struct {
	FieldID    string   `json:"field_id"`
	FieldTitle string   `json:"field_title,omitempty"`
	Errors     []string `json:"errors"`
	// InstanceErrors holds per-element detail for for_each failures,
	// keyed by list index.
	InstanceErrors map[int][]string `json:"instance_errors,omitempty"`
}

// PageResult aggregates the outcome of validating one page: every field and
// every rule is always evaluated so the UI can show all errors at once.
type PageResult struct {
	Valid      bool          `json:"valid"`
	Errors     []FieldErrors `json:"errors"`
	ErrorCount int           `json:"error_count"`
}

// pageCollector accumulates errors in first-seen field order, which keeps
// results byte-identical across runs on identical inputs.
type pageCollector struct {
	order  []string
	fields map[string]*FieldErrors
	count  int
}

func newPageCollector() *pageCollector {
	return &pageCollector{fields: make(map[string]*FieldErrors)}
}

func (c *pageCollector) add(fieldID, fieldTitle, message string) {
	f := c.field(fieldID, fieldTitle)
	f.Errors = append(f.Errors, message)
	c.count++
}

func (c *pageCollector) addInstance(fieldID, fieldTitle string, index int, messages []string) {
	f := c.field(fieldID, fieldTitle)
	if f.InstanceErrors == nil {
		f.InstanceErrors = make(map[int][]string)
	}
	f.InstanceErrors[index] = append(f.InstanceErrors[index], messages...)
}

func (c *pageCollector) field(fieldID, fieldTitle string) *FieldErrors {
	if f, ok := c.fields[fieldID]; ok {
		if f.FieldTitle == "" {
			f.FieldTitle = fieldTitle
		}
		return f
	}
	f := &FieldErrors{FieldID: fieldID, FieldTitle: fieldTitle}
	c.fields[fieldID] = f
	c.order = append(c.order, fieldID)
	return f
}

func (c *pageCollector) result() *PageResult {
	res := &PageResult{Valid: c.count == 0, ErrorCount: c.count}
	for _, id := range c.order {
		res.Errors = append(res.Errors, *c.fields[id])
	}
	return res
}
