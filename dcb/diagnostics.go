package dcb

import "fmt"

// DiagnosticsSnapshot is a point-in-time count of registered DCBs
// grouped by state, useful for a proxy operator to answer "how many
// connections are stuck draining".
type DiagnosticsSnapshot struct {
	ByState map[State]int
	Total   int
}

// Diagnostics walks the registry once and returns a DiagnosticsSnapshot.
func (m *Manager) Diagnostics() DiagnosticsSnapshot {
	snap := DiagnosticsSnapshot{ByState: make(map[State]int)}
	m.Enumerate(func(d *DCB) {
		snap.ByState[d.State()]++
		snap.Total++
	})
	return snap
}

// PrintOne renders one DCB's state and statistics for human consumption.
func PrintOne(d *DCB) string {
	return fmt.Sprintf(
		"dcb fd=%d role=%s state=%s reads=%d writes=%d buffered_writes=%d accepts=%d command=%d",
		d.FD(), d.Role(), d.State(),
		d.Stats.Reads.Load(), d.Stats.Writes.Load(),
		d.Stats.BufferedWrites.Load(), d.Stats.Accepts.Load(),
		d.Command(),
	)
}

// PrintAll renders every DCB currently in the registry, one per line.
func (m *Manager) PrintAll() string {
	out := ""
	m.Enumerate(func(d *DCB) {
		out += PrintOne(d) + "\n"
	})
	return out
}
