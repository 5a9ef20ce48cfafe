package metrics

import "time"

// Namespace prefixes every leafscan metric.
const Namespace = "leafscan"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ShutdownTimeout bounds how long a metrics consumer waits on shutdown.
const ShutdownTimeout = 5 * time.Second
