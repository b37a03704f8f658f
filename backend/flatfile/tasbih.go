package flatfile

import (
	"fmt"
	"strconv"
	"strings"
)

// Milestone is the count at which a tasbih round completes.
const Milestone = 33

// TasbihDay is one line of the tasbih file
type TasbihDay struct {
	Count  int
	Cycles int
	Total  int
}

type tasbihCodec struct{}

func (tasbihCodec) Encode(d TasbihDay) string {
	return fmt.Sprintf("%d,%d,%d", d.Count, d.Cycles, d.Total)
}

func (tasbihCodec) Decode(fields string) (TasbihDay, error) {
	parts := strings.Split(fields, ",")
	if len(parts) < 3 {
		return TasbihDay{}, fmt.Errorf("want count, cycles and total, got %q", fields)
	}
	var vals [3]int
	for i := range vals {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return TasbihDay{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return TasbihDay{Count: vals[0], Cycles: vals[1], Total: vals[2]}, nil
}

// TasbihStore is the daily tasbih file (tasbih_data.txt)
type TasbihStore struct {
	*Store[TasbihDay]
}

// NewTasbihStore opens the tasbih file at path.
func NewTasbihStore(path string, opts ...Option) *TasbihStore {
	return &TasbihStore{Store: NewStore[TasbihDay](path, tasbihCodec{}, opts...)}
}

// Increment counts one dhikr today. milestone is true when the session count
// reaches a multiple of 33.
func (t *TasbihStore) Increment() (day TasbihDay, milestone bool, err error) {
	day, err = t.Update(t.Today(), func(d TasbihDay, _ bool) TasbihDay {
		d.Count++
		d.Total++
		return d
	})
	if err != nil {
		return day, false, err
	}
	return day, day.Count%Milestone == 0, nil
}

// CompleteCycle closes the current session: cycles goes up by one and the
// session count starts again from zero. The running total is kept.
func (t *TasbihStore) CompleteCycle() (TasbihDay, error) {
	return t.Update(t.Today(), func(d TasbihDay, _ bool) TasbihDay {
		d.Cycles++
		d.Count = 0
		return d
	})
}

// Reset zeroes today's session count.
func (t *TasbihStore) Reset() (TasbihDay, error) {
	return t.Update(t.Today(), func(d TasbihDay, _ bool) TasbihDay {
		d.Count = 0
		return d
	})
}
