package process

// Notes:
// - Real kill behavior is covered by the browser integration tests; unit tests
//   cannot safely terminate real process groups.
// - Non-positive PIDs must be no-ops: kill(-0) would signal the test binary's
//   own process group.

import "testing"

func TestKillProcessGroup_InvalidPID(t *testing.T) {
	t.Parallel()

	KillProcessGroup(999999999)
}

func TestKillProcessGroup_NonPositivePIDIsIgnored(t *testing.T) {
	t.Parallel()

	// Reaching the end of this test proves the current group was not killed.
	for _, pid := range []int{0, -1} {
		KillProcessGroup(pid)
	}
}
