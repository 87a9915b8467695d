package auth

// Gate answers permission questions about a resolved payload. A gate without
// a payload is loading: every predicate is false and callers must treat that
// as unknown rather than denied.
type Gate struct {
	payload     *Payload
	permissions map[string]struct{}
	groups      map[string]struct{}
}

// NewGate builds a loaded gate. A nil payload yields a pending gate.
func NewGate(p *Payload) Gate {
	if p == nil {
		return PendingGate()
	}
	g := Gate{
		payload:     p,
		permissions: make(map[string]struct{}, len(p.Permissions)),
		groups:      make(map[string]struct{}, len(p.Groups)),
	}
	for _, k := range p.Permissions {
		g.permissions[k] = struct{}{}
	}
	for _, gr := range p.Groups {
		g.groups[gr] = struct{}{}
	}
	return g
}

// PendingGate is the state before the payload has been resolved.
func PendingGate() Gate { return Gate{} }

func (g Gate) Loading() bool { return g.payload == nil }

// Payload returns the underlying payload, if loaded.
func (g Gate) Payload() (Payload, bool) {
	if g.payload == nil {
		return Payload{}, false
	}
	return *g.payload, true
}

func (g Gate) HasPermission(key string) bool {
	if g.payload == nil {
		return false
	}
	_, ok := g.permissions[key]
	return ok
}

func (g Gate) HasGroup(group string) bool {
	if g.payload == nil {
		return false
	}
	_, ok := g.groups[group]
	return ok
}

// HasAnyPermission is true when at least one key is granted.
func (g Gate) HasAnyPermission(keys ...string) bool {
	for _, k := range keys {
		if g.HasPermission(k) {
			return true
		}
	}
	return false
}

// HasAllPermissions is true when every key is granted; vacuously true for no keys once loaded.
func (g Gate) HasAllPermissions(keys ...string) bool {
	if g.payload == nil {
		return false
	}
	for _, k := range keys {
		if !g.HasPermission(k) {
			return false
		}
	}
	return true
}
