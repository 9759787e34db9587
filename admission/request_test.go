package admission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := &Request{Owner: "u1", Resource: "p1", Query: "what is consideration?"}
		require.NoError(t, req.Validate())
	})

	t.Run("missing owner", func(t *testing.T) {
		req := &Request{Query: "what is consideration?"}
		assert.ErrorIs(t, req.Validate(), ErrMissingOwner)
	})

	t.Run("blank query", func(t *testing.T) {
		req := &Request{Owner: "u1", Query: "   "}
		assert.ErrorIs(t, req.Validate(), ErrEmptyQuery)
	})
}

func TestRequestFingerprint(t *testing.T) {
	t.Run("identical requests collide", func(t *testing.T) {
		a := &Request{Owner: "u1", Resource: "p1", Query: "q", Evidence: []string{"e1", "e2"}}
		b := &Request{Owner: "u1", Resource: "p1", Query: "q", Evidence: []string{"x1", "x2"}}

		assert.Equal(t, a.Fingerprint(), b.Fingerprint(),
			"fingerprint uses evidence count, not evidence content")
	})

	t.Run("distinct owners differ", func(t *testing.T) {
		a := &Request{Owner: "u1", Resource: "p1", Query: "q"}
		b := &Request{Owner: "u2", Resource: "p1", Query: "q"}

		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("distinct evidence counts differ", func(t *testing.T) {
		a := &Request{Owner: "u1", Resource: "p1", Query: "q", Evidence: []string{"e1"}}
		b := &Request{Owner: "u1", Resource: "p1", Query: "q", Evidence: []string{"e1", "e2"}}

		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("long queries collide on prefix", func(t *testing.T) {
		base := strings.Repeat("a", fingerprintQueryChars)
		a := &Request{Owner: "u1", Query: base + " tail one"}
		b := &Request{Owner: "u1", Query: base + " other tail"}

		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})
}

func TestRequestPrompt(t *testing.T) {
	t.Run("query only", func(t *testing.T) {
		req := &Request{Owner: "u1", Query: "q"}
		assert.Equal(t, "q", req.Prompt())
	})

	t.Run("query with evidence", func(t *testing.T) {
		req := &Request{Owner: "u1", Query: "q", Evidence: []string{"e1", "e2"}}
		assert.Equal(t, "q\n\ne1\n\ne2", req.Prompt())
	})
}
