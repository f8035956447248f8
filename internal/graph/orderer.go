package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Edge is a dependency between two objects: From must be restored
// before To, because To carries a reference field pointing at From.
type Edge struct {
	From string
	To   string
}

func (e Edge) String() string { return e.From + " -> " + e.To }

// MarshalLogObject lets an Edge appear structured in zap output.
func (e Edge) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("from", e.From)
	enc.AddString("to", e.To)
	return nil
}

// Order is the result of dependency ordering: a total order over the
// requested objects plus every dependency edge that had to be broken to
// produce it. DeferredEdges is empty for an acyclic graph.
type Order struct {
	Sequence      []string
	DeferredEdges []Edge
}

// Orderer computes a restore order over a set of objects from their
// reference fields.
type Orderer struct {
	rels   *RelationshipManager
	logger *zap.Logger
}

// NewOrderer creates an orderer backed by the given relationship
// manager.
func NewOrderer(rels *RelationshipManager, logger *zap.Logger) *Orderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orderer{rels: rels, logger: logger}
}

// OrderForRestore topologically sorts the objects so referenced objects
// come before the objects referencing them. Ties break alphabetically,
// so the order is deterministic for a given input set. Cycles never
// fail the sort: the remaining object with the most dependents is
// placed next and each broken dependency is recorded in DeferredEdges
// and logged.
func (o *Orderer) OrderForRestore(ctx context.Context, objects []string) (*Order, error) {
	edges, err := o.dependencyEdges(ctx, objects)
	if err != nil {
		return nil, err
	}
	return sortWithDeferral(objects, edges, o.logger), nil
}

// ValidateOrder reports every dependency the proposed order violates:
// an object restored before one of the objects it references.
func (o *Orderer) ValidateOrder(ctx context.Context, ordered []string) ([]Edge, error) {
	edges, err := o.dependencyEdges(ctx, ordered)
	if err != nil {
		return nil, err
	}

	position := make(map[string]int, len(ordered))
	for i, name := range ordered {
		position[strings.ToLower(name)] = i
	}

	var violations []Edge
	for _, e := range edges {
		if position[strings.ToLower(e.From)] > position[strings.ToLower(e.To)] {
			violations = append(violations, e)
		}
	}
	return violations, nil
}

// dependencyEdges builds the edge set among the requested objects only.
// References leaving the set and self-references do not constrain the
// order.
func (o *Orderer) dependencyEdges(ctx context.Context, objects []string) ([]Edge, error) {
	canonical := make(map[string]string, len(objects))
	for _, name := range objects {
		canonical[strings.ToLower(name)] = name
	}

	var edges []Edge
	seen := make(map[string]bool)
	for _, name := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refs, err := o.rels.ReferenceFields(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve references of %s: %w", name, err)
		}
		for field, referenced := range refs {
			dep, inSet := canonical[strings.ToLower(referenced)]
			if !inSet {
				continue
			}
			if strings.EqualFold(dep, name) {
				o.logger.Debug("ignoring self-reference",
					zap.String("object", name), zap.String("field", field))
				continue
			}
			e := Edge{From: dep, To: name}
			if !seen[e.String()] {
				seen[e.String()] = true
				edges = append(edges, e)
			}
		}
	}
	return edges, nil
}

func sortWithDeferral(objects []string, edges []Edge, logger *zap.Logger) *Order {
	remaining := make(map[string]bool, len(objects))
	names := make([]string, 0, len(objects))
	for _, name := range objects {
		if !remaining[name] {
			remaining[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	inDegree := make(map[string]int, len(names))
	incoming := make(map[string][]Edge)
	dependents := make(map[string]int)
	for _, e := range edges {
		inDegree[e.To]++
		incoming[e.To] = append(incoming[e.To], e)
		dependents[e.From]++
	}

	order := &Order{Sequence: make([]string, 0, len(names))}
	satisfied := make(map[string]bool)

	for len(order.Sequence) < len(names) {
		// Zero in-degree candidates in alphabetical order.
		next := ""
		for _, name := range names {
			if remaining[name] && inDegree[name] == 0 {
				next = name
				break
			}
		}

		if next == "" {
			// Cycle. Place the remaining object with the most dependents
			// and defer its unsatisfied incoming edges.
			best, bestScore := "", -1
			for _, name := range names {
				if remaining[name] && dependents[name] > bestScore {
					best, bestScore = name, dependents[name]
				}
			}
			next = best
			for _, e := range incoming[next] {
				if !satisfied[e.From] {
					order.DeferredEdges = append(order.DeferredEdges, e)
					logger.Warn("breaking dependency cycle, reference will be deferred",
						zap.String("required_first", e.From),
						zap.String("placed_early", e.To))
				}
			}
		}

		remaining[next] = false
		satisfied[next] = true
		order.Sequence = append(order.Sequence, next)
		for _, e := range edges {
			if e.From == next && remaining[e.To] {
				inDegree[e.To]--
			}
		}
	}
	return order
}
