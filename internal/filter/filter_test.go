package filter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	triggers []Trigger
}

func (r *recorder) record(t Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, t)
}

func (r *recorder) all() []Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Trigger, len(r.triggers))
	copy(out, r.triggers)
	return out
}

func TestSearchCollapsesKeystrokes(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(30*time.Millisecond, rec.record)
	defer d.Stop()

	d.Search("a")
	d.Search("ab")
	d.Search("abc")

	time.Sleep(120 * time.Millisecond)

	triggers := rec.all()
	require.Len(t, triggers, 1)
	assert.Equal(t, "abc", triggers[0].State.Search)
	assert.Equal(t, uint64(1), triggers[0].Generation)
}

func TestClearSearchFiresImmediately(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(time.Hour, rec.record)
	defer d.Stop()

	d.Search("abc")
	d.Search("")

	triggers := rec.all()
	require.Len(t, triggers, 1)
	assert.Equal(t, "", triggers[0].State.Search)

	// the pending "abc" timer must not fire later
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, rec.all(), 1)
}

func TestFacetChangeFiresImmediately(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(time.Hour, rec.record)
	defer d.Stop()

	d.Update(func(s *State) { s.Status = "Pending" })

	triggers := rec.all()
	require.Len(t, triggers, 1)
	assert.Equal(t, "Pending", triggers[0].State.Status)
}

func TestFacetChangeCancelsPendingSearch(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(40*time.Millisecond, rec.record)
	defer d.Stop()

	d.Search("camp")
	d.Update(func(s *State) { s.Type = "Event" })

	time.Sleep(120 * time.Millisecond)

	triggers := rec.all()
	require.Len(t, triggers, 1)
	assert.Equal(t, "camp", triggers[0].State.Search)
	assert.Equal(t, "Event", triggers[0].State.Type)
}

func TestGenerationsIncrease(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(time.Hour, rec.record)
	defer d.Stop()

	d.Update(func(s *State) { s.Status = "Pending" })
	d.Update(func(s *State) { s.Status = "Approved" })
	d.Search("")

	triggers := rec.all()
	require.Len(t, triggers, 3)
	assert.Equal(t, uint64(1), triggers[0].Generation)
	assert.Equal(t, uint64(2), triggers[1].Generation)
	assert.Equal(t, uint64(3), triggers[2].Generation)
	assert.Equal(t, uint64(3), d.Generation())
}

func TestStopSilencesPendingTimer(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(20*time.Millisecond, rec.record)

	d.Search("abc")
	d.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.all())
}
