package engine

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

// Predicate is one actionability condition. Values are bit flags.
type Predicate uint8

const (
	Attached Predicate = 1 << iota
	Visible
	Stable
	Enabled
	Editable
	ReceivesEvents
)

// predicateOrder is the evaluation order, cheapest first.
var predicateOrder = []Predicate{Attached, Visible, Stable, Enabled, Editable, ReceivesEvents}

func (p Predicate) String() string {
	switch p {
	case Attached:
		return "attached"
	case Visible:
		return "visible"
	case Stable:
		return "stable"
	case Enabled:
		return "enabled"
	case Editable:
		return "editable"
	case ReceivesEvents:
		return "receivesEvents"
	default:
		return fmt.Sprintf("predicate(%d)", uint8(p))
	}
}

func (p Predicate) unmetReason() string {
	switch p {
	case Attached:
		return "element is not attached to the DOM"
	case Visible:
		return "element is not visible"
	case Stable:
		return "element is not stable"
	case Enabled:
		return "element is not enabled"
	case Editable:
		return "element is not editable"
	case ReceivesEvents:
		return "element does not receive pointer events"
	default:
		return p.String() + " not met"
	}
}

// PredicateSet is a set of predicates.
type PredicateSet uint8

// Predicate sets required by each action family.
const (
	PointerPredicates = PredicateSet(Attached | Visible | Stable | ReceivesEvents)
	TextPredicates    = PredicateSet(Attached | Visible | Stable | Enabled | Editable)
	CheckPredicates   = PredicateSet(Attached | Visible | Stable | Enabled | ReceivesEvents)
	SelectPredicates  = PredicateSet(Attached | Visible | Enabled)
	FilePredicates    = PredicateSet(Attached | Enabled)
	ScrollPredicates  = PredicateSet(Attached | Visible | Stable)
	AttachedOnly      = PredicateSet(Attached)

	// geometryPredicates need the element's bounds.
	geometryPredicates = PredicateSet(Visible | Stable | ReceivesEvents)
)

// Has reports whether p is in the set.
func (s PredicateSet) Has(p Predicate) bool { return s&PredicateSet(p) != 0 }

func (s PredicateSet) with(p Predicate) PredicateSet { return s | PredicateSet(p) }

func (s PredicateSet) String() string {
	var names []string
	for _, p := range predicateOrder {
		if s.Has(p) {
			names = append(names, p.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

// ActionabilityState is one poll's snapshot of a target.
type ActionabilityState struct {
	// Resolved is true when the target matched at least one element.
	Resolved bool
	Count    int
	// Evaluated holds the predicates checked this poll; Held the ones that were true.
	Evaluated PredicateSet
	Held      PredicateSet
	// Unmet is the first predicate that failed, zero when all evaluated predicates held.
	Unmet  Predicate
	Bounds *schemas.Rect
	// Point is where a pointer action would land, when it was computed.
	Point *schemas.Point
	// Reason describes why the target is not ready, including non-predicate waits.
	Reason string

	// firstSample is set when Stable failed only because no earlier sample existed.
	firstSample bool
}

// Met reports whether p was evaluated and held.
func (s ActionabilityState) Met(p Predicate) bool {
	return s.Evaluated.Has(p) && s.Held.Has(p)
}

// Ready reports whether exactly one element resolved and nothing was unmet.
func (s ActionabilityState) Ready() bool {
	return s.Resolved && s.Count == 1 && s.Unmet == 0 && s.Reason == ""
}

func (s ActionabilityState) String() string {
	if !s.Resolved {
		return "{resolved:false}"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "{resolved:true count:%d", s.Count)
	for _, p := range predicateOrder {
		if s.Evaluated.Has(p) {
			fmt.Fprintf(&b, " %s:%t", p, s.Held.Has(p))
		}
	}
	b.WriteString("}")
	return b.String()
}

func (s *ActionabilityState) mark(p Predicate, ok bool) bool {
	s.Evaluated = s.Evaluated.with(p)
	if ok {
		s.Held = s.Held.with(p)
		return true
	}
	if s.Unmet == 0 {
		s.Unmet = p
		if s.Reason == "" {
			s.Reason = p.unmetReason()
		}
	}
	return false
}
