// internal/engine/resolver.go

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// resolver turns targets into live element references. It keeps no state between calls.
type resolver struct {
	dom DOM
	nav Navigation
}

// Resolve returns every element the target currently denotes.
func (r *resolver) Resolve(ctx context.Context, t Target) ([]ElementRef, error) {
	switch t := t.(type) {
	case *Handle:
		ref, err := r.handleRef(t)
		if err != nil {
			return nil, err
		}
		return []ElementRef{ref}, nil
	case Locator:
		return r.query(ctx, t.q)
	case nil:
		return nil, errors.New("nil target")
	default:
		return nil, fmt.Errorf("unsupported target type %T", t)
	}
}

// ResolveExactlyOne returns the single element the target denotes, ErrNoElements,
// or an *AmbiguityError.
func (r *resolver) ResolveExactlyOne(ctx context.Context, t Target) (ElementRef, error) {
	refs, err := r.Resolve(ctx, t)
	if err != nil {
		return nil, err
	}
	switch len(refs) {
	case 0:
		return nil, ErrNoElements
	case 1:
		return refs[0], nil
	default:
		return nil, &AmbiguityError{Count: len(refs)}
	}
}

func (r *resolver) handleRef(h *Handle) (ElementRef, error) {
	if h.Disposed() {
		return nil, fmt.Errorf("%s: %w", h, ErrHandleDisposed)
	}
	if r.nav.Epoch() != h.epoch {
		return nil, fmt.Errorf("%s: page navigated since the handle was created: %w", h, ErrHandleDisposed)
	}
	return h.ref, nil
}

func (r *resolver) query(ctx context.Context, q QueryDescriptor) ([]ElementRef, error) {
	if len(q.parts) == 0 {
		return nil, nil
	}
	var scopes []ElementRef
	if q.root != nil {
		ref, err := r.handleRef(q.root)
		if err != nil {
			return nil, err
		}
		scopes = []ElementRef{ref}
	}
	return r.walk(ctx, q.parts, scopes, q.root != nil)
}

// walk applies parts in order. Until the first selector runs, a nil scope list
// means the whole document.
func (r *resolver) walk(ctx context.Context, parts []queryPart, current []ElementRef, scoped bool) ([]ElementRef, error) {
	for _, p := range parts {
		var err error
		switch p.kind {
		case partSelector:
			current, err = r.selectUnder(ctx, p.selector, current, scoped)
			scoped = true
		case partFilter:
			current, err = r.filter(ctx, current, p.filter)
		case partNth:
			current = pickNth(current, p.nth)
		}
		if err != nil {
			return nil, err
		}
		if scoped && len(current) == 0 {
			return nil, nil
		}
	}
	return current, nil
}

func (r *resolver) selectUnder(ctx context.Context, selector string, scopes []ElementRef, scoped bool) ([]ElementRef, error) {
	if !scoped {
		return r.dom.QueryAll(ctx, selector, nil)
	}
	seen := make(map[string]bool)
	var out []ElementRef
	for _, scope := range scopes {
		refs, err := r.dom.QueryAll(ctx, selector, scope)
		if errors.Is(err, ErrElementDetached) {
			// The scope vanished between parts; it contributes nothing this round.
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if !seen[ref.Key()] {
				seen[ref.Key()] = true
				out = append(out, ref)
			}
		}
	}
	return out, nil
}

func pickNth(refs []ElementRef, n int) []ElementRef {
	if n < 0 {
		n += len(refs)
	}
	if n < 0 || n >= len(refs) {
		return nil
	}
	return []ElementRef{refs[n]}
}

func (r *resolver) filter(ctx context.Context, refs []ElementRef, f Filter) ([]ElementRef, error) {
	out := refs[:0:0]
	for _, ref := range refs {
		ok, err := r.matches(ctx, ref, f)
		if errors.Is(err, ErrElementDetached) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *resolver) matches(ctx context.Context, ref ElementRef, f Filter) (bool, error) {
	if f.HasText != "" || f.HasNotText != "" || f.Role != "" || f.Name != "" {
		info, err := r.dom.Describe(ctx, ref)
		if err != nil {
			return false, err
		}
		text := normalizeText(info.Text)
		if f.HasText != "" && !strings.Contains(text, normalizeText(f.HasText)) {
			return false, nil
		}
		if f.HasNotText != "" && strings.Contains(text, normalizeText(f.HasNotText)) {
			return false, nil
		}
		if f.Role != "" && !strings.EqualFold(info.Role, f.Role) {
			return false, nil
		}
		if f.Name != "" && !strings.Contains(normalizeText(info.Name), normalizeText(f.Name)) {
			return false, nil
		}
	}
	if f.Has != nil {
		found, err := r.walk(ctx, f.Has.q.parts, []ElementRef{ref}, true)
		if err != nil || len(found) == 0 {
			return false, err
		}
	}
	if f.HasNot != nil {
		found, err := r.walk(ctx, f.HasNot.q.parts, []ElementRef{ref}, true)
		if err != nil || len(found) > 0 {
			return false, err
		}
	}
	return true, nil
}

// normalizeText lower-cases s and collapses runs of whitespace.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
