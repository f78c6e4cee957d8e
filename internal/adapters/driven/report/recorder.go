// Package report accumulates assertion results into a hierarchical
// structure and serializes it as the run's JSON report artifact.
package report

import (
	"sync"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

// node is one level of the report hierarchy. Interior nodes hold
// children; the leaf reached by a Record path holds the description and
// the assertion list.
type node struct {
	Description string                   `json:"description,omitempty"`
	Assertions  []domain.AssertionResult `json:"assertions,omitempty"`
	children    map[string]*node
}

// Recorder builds the hierarchical report. It is an explicit per-run
// accumulator: construct one per validation run and pass it into every
// engine and orchestrator call. Safe for use from a single writer; the
// mutex guards against accidental concurrent recording.
type Recorder struct {
	mu   sync.Mutex
	root *node
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{root: &node{children: map[string]*node{}}}
}

// Record inserts result at the nested position named by path, creating
// intermediate levels as needed. Results recorded under the same path
// append to the same assertion list.
func (r *Recorder) Record(path []string, description string, result domain.AssertionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.root
	for _, segment := range path {
		child, ok := cur.children[segment]
		if !ok {
			child = &node{children: map[string]*node{}}
			cur.children[segment] = child
		}
		cur = child
	}
	cur.Description = description
	cur.Assertions = append(cur.Assertions, result)
}

// Report renders the accumulated hierarchy as nested maps ready for JSON
// serialization.
func (r *Recorder) Report() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return render(r.root)
}

func render(n *node) map[string]any {
	out := make(map[string]any, len(n.children)+2)
	if n.Description != "" {
		out["description"] = n.Description
	}
	if len(n.Assertions) > 0 {
		out["assertions"] = n.Assertions
	}
	for name, child := range n.children {
		out[name] = render(child)
	}
	return out
}

var _ ports.AssertionRecorder = (*Recorder)(nil)
