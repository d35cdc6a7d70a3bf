package snapshot

import (
	"sync"

	"github.com/pkg/errors"
)

// Array is a wait-free atomic snapshot over one register per writer. Writers
// update their own register; any goroutine may scan all of them consistently.
type Array struct {
	registers []Register
	holders   []Holder

	mu   sync.Mutex
	next int
}

// NewArray creates an array for the given number of writers.
func NewArray(writers int) *Array {
	a := &Array{
		registers: make([]Register, writers),
		holders:   make([]Holder, writers),
	}
	for i := range a.holders {
		a.holders[i].init(writers)
	}
	return a
}

// Register assigns the caller its writer slot. Each writer goroutine
// registers exactly once before its first Update.
func (a *Array) Register() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next >= len(a.registers) {
		panic(errors.Errorf("all %d writer slots taken", len(a.registers)))
	}
	index := a.next
	a.next++
	return index
}

// Scan returns a consistent snapshot of all registers. Wait-free: a writer
// observed changing twice must have published a snapshot linearized inside
// this scan, so that snapshot is borrowed instead of collecting further.
func (a *Array) Scan() Snapshot {
	n := len(a.registers)
	changes := make([]int, n)

	first := a.collect()
	second := Snapshot{cells: make([]uint64, n)}

	for {
		same := true
		for i := range n {
			second.cells[i] = a.registers[i].load()
			if first.cells[i] == second.cells[i] {
				continue
			}
			same = false

			changes[i]++
			if changes[i] == 2 {
				b := a.holders[i].Acquire()
				copy(first.cells, b.cells)
				b.Release()
				return first
			}
		}

		if same {
			return first
		}

		first.cells, second.cells = second.cells, first.cells
	}
}

// Update publishes the writer's current snapshot, then writes the value into
// its register. Publishing first guarantees that a scanner observing this
// writer change twice finds a snapshot it can borrow.
func (a *Array) Update(value int32, index int) {
	a.holders[index].Exchange(a.Scan())
	a.registers[index].Write(value)
}

func (a *Array) collect() Snapshot {
	cells := make([]uint64, len(a.registers))
	for i := range a.registers {
		cells[i] = a.registers[i].load()
	}
	return Snapshot{cells: cells}
}
