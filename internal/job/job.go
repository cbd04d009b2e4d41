package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/nguyentantai21042004/transflow/internal/domain"
)

// Job owns the units of one translation run. All unit status changes go
// through it so that no two workers can hold the same block.
type Job struct {
	ID         string
	Kind       domain.Kind
	Source     string
	FailClosed bool

	mu         sync.Mutex
	units      []*domain.Block
	next       int
	status     Status
	err        string
	output     string
	final      map[domain.UnitStatus]int
	finalTotal int
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// New creates a pending job with no units.
func New(id string, kind domain.Kind, source string, failClosed bool) *Job {
	return &Job{
		ID:         id,
		Kind:       kind,
		Source:     source,
		FailClosed: failClosed,
		status:     StatusPending,
		createdAt:  time.Now(),
	}
}

// Load hands the extracted units to the job. Claims follow the given order.
func (j *Job) Load(units []*domain.Block) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.units = units
	j.next = 0
	for _, u := range units {
		u.Status = domain.UnitPending
	}
}

// Start moves the job to running.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusPending {
		j.status = StatusRunning
		j.startedAt = time.Now()
	}
}

// Units returns the unit slice. Callers must not read it while workers run.
func (j *Job) Units() []*domain.Block {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.units
}

// Claim hands the next pending unit to the caller and marks it in flight.
func (j *Job) Claim() (*domain.Block, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		return nil, false
	}
	for j.next < len(j.units) {
		u := j.units[j.next]
		j.next++
		if u.Status == domain.UnitPending {
			u.Status = domain.UnitInFlight
			return u, true
		}
	}
	return nil, false
}

// Complete records a successful translation for a claimed unit.
func (j *Job) Complete(u *domain.Block, text string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !validTransition(u.Status, domain.UnitDone) {
		return fmt.Errorf("%w: %s is %s", ErrInvalidClaim, u.ID, u.Status)
	}
	u.SetTranslation(text)
	u.Status = domain.UnitDone
	u.Error = ""
	return nil
}

// Fail marks a claimed unit failed. Its output falls back to the source text.
func (j *Job) Fail(u *domain.Block, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !validTransition(u.Status, domain.UnitFailed) {
		return fmt.Errorf("%w: %s is %s", ErrInvalidClaim, u.ID, u.Status)
	}
	u.Status = domain.UnitFailed
	if cause != nil {
		u.Error = cause.Error()
	}
	return nil
}

// Abandon moves every pending or in-flight unit to failed and stops further
// claims. It returns how many units were abandoned.
func (j *Job) Abandon(reason string) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := 0
	for _, u := range j.units {
		if u.Status.Terminal() {
			continue
		}
		u.Status = domain.UnitFailed
		u.Error = reason
		n++
	}
	j.next = len(j.units)
	return n
}

// Derived returns the job status implied by its units: failed when a unit
// failed under fail-closed, done when every unit is terminal, running
// otherwise.
func (j *Job) Derived() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.derivedLocked()
}

func (j *Job) derivedLocked() Status {
	allTerminal := true
	anyFailed := false
	for _, u := range j.units {
		switch u.Status {
		case domain.UnitFailed:
			anyFailed = true
		case domain.UnitDone:
		default:
			allTerminal = false
		}
	}
	if anyFailed && j.FailClosed {
		return StatusFailed
	}
	if allTerminal {
		return StatusDone
	}
	return StatusRunning
}

// Finish records the job outcome and drops the units. cancelled takes
// precedence over err.
func (j *Job) Finish(output string, err error, cancelled bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		return ErrAlreadyFinished
	}

	switch {
	case cancelled:
		j.status = StatusCancelled
	case err != nil:
		j.status = StatusFailed
	default:
		j.status = j.derivedLocked()
		if j.status == StatusRunning {
			j.status = StatusFailed
			err = fmt.Errorf("finished with non-terminal units")
		}
	}
	if err != nil {
		j.err = err.Error()
	}
	j.output = output
	j.final = j.countsLocked()
	j.finalTotal = len(j.units)
	j.units = nil
	j.finishedAt = time.Now()
	if j.startedAt.IsZero() {
		j.startedAt = j.createdAt
	}
	return nil
}

// Status returns the lifecycle status.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Counts returns the number of units in each status.
func (j *Job) Counts() map[domain.UnitStatus]int {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.final != nil {
		return copyCounts(j.final)
	}
	return j.countsLocked()
}

func (j *Job) countsLocked() map[domain.UnitStatus]int {
	counts := map[domain.UnitStatus]int{
		domain.UnitPending:  0,
		domain.UnitInFlight: 0,
		domain.UnitDone:     0,
		domain.UnitFailed:   0,
	}
	for _, u := range j.units {
		counts[u.Status]++
	}
	return counts
}

// Snapshot returns the polling view.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	counts := j.final
	total := j.finalTotal
	if counts == nil {
		counts = j.countsLocked()
		total = len(j.units)
	}

	s := Snapshot{
		ID:        j.ID,
		Kind:      j.Kind,
		Source:    j.Source,
		Output:    j.output,
		Status:    j.status,
		Counts:    copyCounts(counts),
		Total:     total,
		Error:     j.err,
		CreatedAt: j.createdAt,
	}
	if total > 0 {
		s.Progress = float64(counts[domain.UnitDone]+counts[domain.UnitFailed]) / float64(total)
	}
	if !j.startedAt.IsZero() {
		started := j.startedAt
		s.StartedAt = &started
		end := time.Now()
		if !j.finishedAt.IsZero() {
			finished := j.finishedAt
			s.FinishedAt = &finished
			end = finished
		}
		s.Duration = end.Sub(started)
	}
	return s
}

// validTransition enforces the unit state machine edges.
func validTransition(from, to domain.UnitStatus) bool {
	switch from {
	case domain.UnitPending:
		return to == domain.UnitInFlight || to == domain.UnitFailed
	case domain.UnitInFlight:
		return to == domain.UnitDone || to == domain.UnitFailed
	default:
		return false
	}
}

func copyCounts(in map[domain.UnitStatus]int) map[domain.UnitStatus]int {
	out := make(map[domain.UnitStatus]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
