package dav

// PropPatch carries the property mutations of one PROPPATCH request.
// A backend claims the properties it can apply with Handle; everything left
// unclaimed is reported back to the client as failed. Mirrors the engine's
// partial-failure protocol: one unsupported property never aborts the rest.
type PropPatch struct {
	mutations map[string]string
	handled   map[string]bool
}

// NewPropPatch -.
func NewPropPatch(mutations map[string]string) *PropPatch {
	return &PropPatch{
		mutations: mutations,
		handled:   make(map[string]bool, len(mutations)),
	}
}

// Handle claims the given property names. fn is called once with the subset
// of mutations that are actually present; when fn succeeds those properties
// are marked handled.
func (p *PropPatch) Handle(names []string, fn func(mutations map[string]string) error) error {
	claimed := make(map[string]string)
	for _, name := range names {
		if v, ok := p.mutations[name]; ok {
			claimed[name] = v
		}
	}
	if len(claimed) == 0 {
		return nil
	}
	if err := fn(claimed); err != nil {
		return err
	}
	for name := range claimed {
		p.handled[name] = true
	}
	return nil
}

// Remaining lists the mutations no backend claimed.
func (p *PropPatch) Remaining() []string {
	var names []string
	for name := range p.mutations {
		if !p.handled[name] {
			names = append(names, name)
		}
	}
	return names
}

// HandledCount -.
func (p *PropPatch) HandledCount() int { return len(p.handled) }
