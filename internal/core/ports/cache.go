package ports

import "context"

// GradeCache stores terminal TLS grades per host so repeated runs can
// skip re-scanning hosts that were graded recently. This is a port
// interface - implementations are adapters.
type GradeCache interface {
	// Get returns the cached grade for host and whether one was found.
	Get(ctx context.Context, host string) (grade string, ok bool, err error)

	// Put stores the terminal grade for host.
	Put(ctx context.Context, host, grade string) error

	// Close releases any underlying resources.
	Close() error
}
