package views

// DefaultDateFormat is the date format shown in tables
const DefaultDateFormat = "2006-01-02"

// Column describes one table column
type Column struct {
	Title    string
	Width    int    // maximum width; 0 means unlimited
	Align    string // left, center, right
	Truncate bool   // cut values longer than Width with an ellipsis
}

// Table is a titled grid of pre-formatted cells
type Table struct {
	Title   string
	Columns []Column
	Rows    [][]string
	Empty   string // shown instead of the grid when there are no rows
}

// Cols builds left-aligned columns from titles.
func Cols(titles ...string) []Column {
	cols := make([]Column, len(titles))
	for i, t := range titles {
		cols[i] = Column{Title: t}
	}
	return cols
}

// Dashboard is the one-screen summary of the current account's day
type Dashboard struct {
	FullName     string
	Username     string
	Date         string
	PrayersDone  int
	Prayers      []PrayerCell
	QuranPages   int
	QuranGoal    int
	TasbihCount  int
	TasbihCycles int
	TasbihTotal  int
	NextPrayer   string
	NextPrayerAt string
	Location     string
	Unread       int
	PendingFatwa int
}

// PrayerCell is one prayer's status on the dashboard
type PrayerCell struct {
	Name   string
	Status string
}
