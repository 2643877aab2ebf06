package health

// Status is the result of probing the running proxy.
type Status struct {
	IsHealthy bool
	Message   string
}

func (s Status) String() string {
	if s.IsHealthy {
		return "Health-check passed: " + s.Message
	}

	return "Health-check failed: " + s.Message
}
