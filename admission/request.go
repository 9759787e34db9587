package admission

import (
	"fmt"
	"strings"
	"time"
)

// fingerprintQueryChars bounds the query portion of a fingerprint so
// near-identical long prompts still collide on their prefix.
const fingerprintQueryChars = 120

// Request is one generation unit of work. It is ephemeral: created at
// arrival, resolved or rejected exactly once, never persisted.
type Request struct {
	// Owner is the identifier of the requesting user.
	Owner string

	// Resource is the target resource (project, matter) the query runs
	// against.
	Resource string

	// Query is the user's question.
	Query string

	// Evidence holds the retrieved chunk texts backing the query.
	Evidence []string
}

// Validate checks the request carries the fields admission depends on.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Owner) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// Fingerprint derives the deduplication key: owner, resource, the truncated
// query, and the evidence-set size. Two requests with equal fingerprints are
// treated as the same unit of work while one is in flight.
func (r *Request) Fingerprint() string {
	query := r.Query
	if len(query) > fingerprintQueryChars {
		query = query[:fingerprintQueryChars]
	}
	return fmt.Sprintf("%s|%s|%s|%d", r.Owner, r.Resource, query, len(r.Evidence))
}

// Prompt renders the outbound model input: the query followed by each
// evidence chunk. Prompt wording beyond this concatenation is the caller's
// concern.
func (r *Request) Prompt() string {
	if len(r.Evidence) == 0 {
		return r.Query
	}
	var b strings.Builder
	b.WriteString(r.Query)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(r.Evidence, "\n\n"))
	return b.String()
}

// Outcome is the terminal result of a request: an answer or an error,
// exactly one of which is set.
type Outcome struct {
	Answer     string
	Err        error
	ResolvedAt time.Time
}
