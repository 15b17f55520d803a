// internal/pipeline/context.go
package pipeline

import (
	"pos-assistant/internal/analytics"
	"pos-assistant/internal/models"
)

// State enumerates the orchestrator's closed state set.
type State string

const (
	StateStart     State = "START"
	StateClassify  State = "CLASSIFY"
	StateResolve   State = "RESOLVE"
	StateDispatch  State = "DISPATCH"
	StateAnalytics State = "ANALYTICS"
	StateCompose   State = "COMPOSE"
	StateEnd       State = "END"
)

// Context is the single mutable carrier threaded through one pipeline
// pass. It is owned by the orchestrator for the lifetime of one request
// and never shared across concurrent requests.
type Context struct {
	TenantID  string
	Utterance string
	History   []models.Turn

	Classification *models.Classification
	Entities       *models.ResolvedEntities
	Mutation       *models.MutationResult
	Analytics      *analytics.Result

	// Err is the accumulated non-fatal condition COMPOSE turns into a
	// clarification, or the fatal DataAccessError surfaced generically.
	Err error

	Answer   string
	Metadata map[string]interface{}

	// Trace records the states visited, for metadata and tests.
	Trace []State
}

func newContext(tenantID, utterance string, history []models.Turn) *Context {
	return &Context{
		TenantID:  tenantID,
		Utterance: utterance,
		History:   history,
		Metadata:  make(map[string]interface{}),
		Trace:     []State{StateStart},
	}
}

func (c *Context) visit(s State) {
	c.Trace = append(c.Trace, s)
}

// Intent is a nil-safe accessor for the classified intent.
func (c *Context) Intent() models.Intent {
	if c.Classification == nil {
		return models.IntentUnresolved
	}
	return c.Classification.Intent
}
