//go:build !unix

package runlock

// processAlive cannot probe other processes here; staleness relies on the heartbeat
func processAlive(pid int) bool {
	return pid > 0
}
