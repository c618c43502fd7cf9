// Package validation checks persisted graph documents before they are
// applied to a live graph. Field-level rules come from struct tags on the
// document types; the structural rules (identity uniqueness, endpoint
// references, fan-in) are checked here because tags cannot express them.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/flowcore/flowcore/internal/core/graph"
)

// ValidationError is one finding, attributed to the field that raised it.
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors aggregates every finding from one document pass, so a
// caller can report all problems at once instead of fixing them one by one.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Options controls the optional checks.
type Options struct {
	// CheckCycles reports directed cycles among the document's
	// connections. The engine tolerates cycles at runtime by bounding
	// propagation depth, so this is advisory rather than structural.
	CheckCycles bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateDocument runs field and structural validation over a persisted
// graph document. A non-nil return is either ValidationErrors or a plain
// error for a nil document.
func ValidateDocument(doc *graph.Document, opts ...Options) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}

	var findings ValidationErrors
	if err := validate.Struct(doc); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			findings = append(findings, ValidationError{
				Field:   fe.Namespace(),
				Value:   fe.Value(),
				Message: fmt.Sprintf("failed rule %q", fe.Tag()),
			})
		}
	}

	findings = append(findings, checkStructure(doc)...)

	var cfg Options
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.CheckCycles && hasCycle(doc) {
		findings = append(findings, ValidationError{
			Field:   "connections",
			Message: "connections form a directed cycle",
		})
	}

	if len(findings) > 0 {
		return findings
	}
	return nil
}

// checkStructure enforces the rules tags cannot: unique node and connection
// ids, connection endpoints referring to declared nodes, and at most one
// incoming connection per target input port.
func checkStructure(doc *graph.Document) ValidationErrors {
	var findings ValidationErrors

	nodeIDs := make(map[string]struct{}, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if _, dup := nodeIDs[n.ID]; dup {
			findings = append(findings, ValidationError{
				Field:   fmt.Sprintf("nodes[%d].id", i),
				Value:   n.ID,
				Message: "duplicate node id",
			})
			continue
		}
		nodeIDs[n.ID] = struct{}{}
	}

	connIDs := make(map[string]struct{}, len(doc.Connections))
	targets := make(map[string]struct{}, len(doc.Connections))
	for i, c := range doc.Connections {
		if _, dup := connIDs[c.ID]; dup {
			findings = append(findings, ValidationError{
				Field:   fmt.Sprintf("connections[%d].id", i),
				Value:   c.ID,
				Message: "duplicate connection id",
			})
		}
		connIDs[c.ID] = struct{}{}

		if _, ok := nodeIDs[c.SourceNodeID]; !ok {
			findings = append(findings, ValidationError{
				Field:   fmt.Sprintf("connections[%d].source_node_id", i),
				Value:   c.SourceNodeID,
				Message: "source node not declared in document",
			})
		}
		if _, ok := nodeIDs[c.TargetNodeID]; !ok {
			findings = append(findings, ValidationError{
				Field:   fmt.Sprintf("connections[%d].target_node_id", i),
				Value:   c.TargetNodeID,
				Message: "target node not declared in document",
			})
		}

		target := c.TargetNodeID + "/" + c.TargetPortKey
		if _, taken := targets[target]; taken {
			findings = append(findings, ValidationError{
				Field:   fmt.Sprintf("connections[%d].target_port_key", i),
				Value:   c.TargetPortKey,
				Message: "target input port already has an incoming connection",
			})
		}
		targets[target] = struct{}{}
	}

	return findings
}

// hasCycle runs a DFS with coloring over the connection edges.
func hasCycle(doc *graph.Document) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	adj := make(map[string][]string, len(doc.Nodes))
	for _, c := range doc.Connections {
		adj[c.SourceNodeID] = append(adj[c.SourceNodeID], c.TargetNodeID)
	}
	color := make(map[string]int, len(doc.Nodes))
	var dfs func(string) bool
	dfs = func(u string) bool {
		color[u] = gray
		for _, v := range adj[u] {
			if color[v] == gray {
				return true
			}
			if color[v] == white && dfs(v) {
				return true
			}
		}
		color[u] = black
		return false
	}
	for _, n := range doc.Nodes {
		if color[n.ID] == white && dfs(n.ID) {
			return true
		}
	}
	return false
}
