package period

// Range is an inclusive span of days [Start, End].
type Range struct {
	Start Date
	End   Date
}

// Valid reports whether Start <= End.
func (r Range) Valid() bool { return r.Start.BeforeOrEqual(r.End) }

// Contains returns true if the date is within [Start, End].
func (r Range) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Days returns every day of the range in order.
func (r Range) Days() []Date {
	var days []Date
	for current := r.Start; current.BeforeOrEqual(r.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// String returns "[start, end]".
func (r Range) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}
