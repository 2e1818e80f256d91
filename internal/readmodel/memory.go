package readmodel

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryArchivableDays struct {
	mu   sync.Mutex
	rows map[string]ArchivableDay
}

func NewMemoryArchivableDays() *MemoryArchivableDays {
	return &MemoryArchivableDays{rows: make(map[string]ArchivableDay)}
}

func (r *MemoryArchivableDays) Add(_ context.Context, d ArchivableDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[d.ID]; !ok {
		r.rows[d.ID] = d
	}
	return nil
}

func (r *MemoryArchivableDays) ScheduledOnOrBefore(_ context.Context, date time.Time) ([]ArchivableDay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ArchivableDay
	for _, d := range r.rows {
		if !d.Date.After(date) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type MemoryAvailableSlots struct {
	mu   sync.Mutex
	rows map[string]AvailableSlot
}

func NewMemoryAvailableSlots() *MemoryAvailableSlots {
	return &MemoryAvailableSlots{rows: make(map[string]AvailableSlot)}
}

func (r *MemoryAvailableSlots) Add(_ context.Context, s AvailableSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.ID]; !ok {
		r.rows[s.ID] = s
	}
	return nil
}

func (r *MemoryAvailableSlots) SetBooked(_ context.Context, id string, booked bool, position uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Position >= position {
		return nil
	}
	row.IsBooked = booked
	row.Position = position
	r.rows[id] = row
	return nil
}

func (r *MemoryAvailableSlots) Delete(_ context.Context, id string, position uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok && row.Position < position {
		delete(r.rows, id)
	}
	return nil
}

func (r *MemoryAvailableSlots) AvailableOn(_ context.Context, date string) ([]AvailableSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AvailableSlot
	for _, s := range r.rows {
		if s.Date == date && !s.IsBooked {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// Get returns one row regardless of its state.
func (r *MemoryAvailableSlots) Get(id string) (AvailableSlot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	return s, ok
}

type MemoryBookedSlots struct {
	mu   sync.Mutex
	rows map[string]BookedSlot
}

func NewMemoryBookedSlots() *MemoryBookedSlots {
	return &MemoryBookedSlots{rows: make(map[string]BookedSlot)}
}

func (r *MemoryBookedSlots) Add(_ context.Context, s BookedSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.ID]; !ok {
		r.rows[s.ID] = s
	}
	return nil
}

func (r *MemoryBookedSlots) Get(_ context.Context, id string) (BookedSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return BookedSlot{}, ErrNotFound
	}
	return row, nil
}

func (r *MemoryBookedSlots) MarkBooked(_ context.Context, id, patientID string, position uint64) error {
	return r.update(id, position, func(s *BookedSlot) {
		s.IsBooked = true
		s.PatientID = patientID
	})
}

func (r *MemoryBookedSlots) MarkAvailable(_ context.Context, id string, position uint64) error {
	return r.update(id, position, func(s *BookedSlot) {
		s.IsBooked = false
		s.PatientID = ""
	})
}

func (r *MemoryBookedSlots) update(id string, position uint64, fn func(*BookedSlot)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Position >= position {
		return nil
	}
	fn(&row)
	row.Position = position
	r.rows[id] = row
	return nil
}

func (r *MemoryBookedSlots) Delete(_ context.Context, id string, position uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok && row.Position < position {
		delete(r.rows, id)
	}
	return nil
}

func (r *MemoryBookedSlots) CountBooked(_ context.Context, patientID string, year, month int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.rows {
		if s.IsBooked && s.PatientID == patientID && s.Year == year && s.Month == month {
			n++
		}
	}
	return n, nil
}
