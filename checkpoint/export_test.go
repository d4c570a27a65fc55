package checkpoint

// SetAliveProbe replaces the pid liveness probe used when deciding
// whether a lock file is stale.
func SetAliveProbe(s *FileStore, probe func(pid int) bool) {
	s.alive = probe
}
