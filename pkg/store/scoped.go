package store

import (
	"context"
	"fmt"
)

// Namespace prefixes every key with prefix, so several sessions can share one
// backend without seeing each other's history.
func Namespace(port Port, prefix string) Port {
	if prefix == "" {
		return port
	}
	return namespaced{port: port, prefix: prefix + ":"}
}

type namespaced struct {
	port   Port
	prefix string
}

func (n namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	return n.port.Get(ctx, n.prefix+key)
}

func (n namespaced) Set(ctx context.Context, key string, payload []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return n.port.Set(ctx, n.prefix+key, payload)
}

func (n namespaced) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return n.port.Delete(ctx, n.prefix+key)
}

// Router hands out the port for a scope.
type Router struct {
	Session    Port
	Persistent Port
}

// For returns the port configured for scope.
func (r Router) For(scope Scope) (Port, error) {
	var port Port
	switch scope {
	case ScopeSession:
		port = r.Session
	case ScopePersistent:
		port = r.Persistent
	default:
		return nil, fmt.Errorf("store: unknown scope %q", scope)
	}
	if port == nil {
		return nil, fmt.Errorf("store: no backend configured for %s scope", scope)
	}
	return port, nil
}

// WithSession returns a copy of r whose session port is namespaced to id.
func (r Router) WithSession(id string) Router {
	if r.Session != nil {
		r.Session = Namespace(r.Session, "session:"+id)
	}
	return r
}
