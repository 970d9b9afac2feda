package progress

// Counts tallies rows by state.
type Counts struct {
	Pending    int
	InProgress int
	Failed     int
	Finished   int
}

// Table holds the rows of the autostart table. Rows are fixed at
// construction; events for ids that have no row are ignored.
type Table struct {
	order   []string
	entries map[string]*Entry
}

// NewTable creates a table with one pending row per service id, in the
// given order. Duplicate ids are collapsed into the first occurrence.
func NewTable(ids ...string) *Table {
	t := &Table{entries: make(map[string]*Entry, len(ids))}
	for _, id := range ids {
		if _, ok := t.entries[id]; ok {
			continue
		}
		t.order = append(t.order, id)
		t.entries[id] = &Entry{ID: id}
	}
	return t
}

// OnProgress records an intermediate step for a service.
func (t *Table) OnProgress(id string, steps, current int, text string) {
	e := t.live(id)
	if e == nil || steps < 1 {
		return
	}
	current = min(max(current, 0), steps)

	e.TotalSteps = steps
	e.CurrentStep = current
	e.currentKnown = true
	e.StatusText = text
	e.Percent = Percentage(current, steps)
	e.State = InProgress
}

// OnFinish marks a service as started.
func (t *Table) OnFinish(id string) {
	e := t.live(id)
	if e == nil {
		return
	}
	e.CurrentStep = e.TotalSteps
	e.currentKnown = e.TotalSteps > 0
	e.Percent = 100
	e.State = Finished
}

// OnError marks a service as failed.
func (t *Table) OnError(id, message string) {
	e := t.live(id)
	if e == nil {
		return
	}
	e.StatusText = message
	e.State = Failed
}

// live returns the row for id unless it is missing or terminal.
func (t *Table) live(id string) *Entry {
	e, ok := t.entries[id]
	if !ok || e.State.Terminal() {
		return nil
	}
	return e
}

// Services returns the row ids in display order.
func (t *Table) Services() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Entry returns a copy of the row for id.
func (t *Table) Entry(id string) (Entry, bool) {
	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns copies of all rows in display order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.entries[id])
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.order)
}

// Counts tallies the rows by state.
func (t *Table) Counts() Counts {
	var c Counts
	for _, e := range t.entries {
		switch e.State {
		case Pending:
			c.Pending++
		case InProgress:
			c.InProgress++
		case Failed:
			c.Failed++
		case Finished:
			c.Finished++
		}
	}
	return c
}

// FailedServices returns the ids of failed rows in display order.
func (t *Table) FailedServices() []string {
	var out []string
	for _, id := range t.order {
		if t.entries[id].State == Failed {
			out = append(out, id)
		}
	}
	return out
}
