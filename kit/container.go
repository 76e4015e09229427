package kit

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrNotProvided is returned when a key has no provider.
var ErrNotProvided = errors.New("no provider for key")

// Factory creates a value from the container.
type Factory func(*Container) (any, error)

// EndpointBinding is an endpoint registered under its file-derived path.
type EndpointBinding struct {
	Path string
	// Static is a nil pointer of the endpoint type, used to read its Route,
	// Methods and BodyParserOptions without an instance.
	Static  any
	Factory Factory
}

// MiddlewareBinding is a middleware registered with its execution order.
type MiddlewareBinding struct {
	Order   int
	Factory Factory
}

// Container is a small dependency-injection container. Providers are
// transient: every Resolve calls the factory again, except for values
// bound with ProvideValue.
type Container struct {
	mu         sync.RWMutex
	providers  map[string]Factory
	endpoints  []EndpointBinding
	middleware []MiddlewareBinding
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{providers: make(map[string]Factory)}
}

// Provide binds a factory under key, replacing any earlier binding.
func (c *Container) Provide(key string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[key] = f
}

// ProvideValue binds a constant value under key.
func (c *Container) ProvideValue(key string, v any) {
	c.Provide(key, func(*Container) (any, error) { return v, nil })
}

// Resolve builds the value bound under key.
func (c *Container) Resolve(key string) (any, error) {
	c.mu.RLock()
	f, ok := c.providers[key]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotProvided, "%q", key)
	}
	v, err := f(c)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %q", key)
	}
	return v, nil
}

// Load runs container modules against the container.
func (c *Container) Load(modules ...func(*Container)) {
	for _, m := range modules {
		m(c)
	}
}

// BindEndpoint registers an endpoint.
func (c *Container) BindEndpoint(path string, static any, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints = append(c.endpoints, EndpointBinding{Path: path, Static: static, Factory: f})
}

// BindMiddleware registers a middleware.
func (c *Container) BindMiddleware(order int, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, MiddlewareBinding{Order: order, Factory: f})
}

// Endpoints returns the endpoint bindings in registration order.
func (c *Container) Endpoints() []EndpointBinding {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]EndpointBinding(nil), c.endpoints...)
}

// Middleware returns the middleware bindings sorted by ascending order.
func (c *Container) Middleware() []MiddlewareBinding {
	c.mu.RLock()
	out := append([]MiddlewareBinding(nil), c.middleware...)
	c.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Key returns the injection key of T, the same text kitgen derives from a
// constructor parameter of that type.
func Key[T any]() string {
	return reflect.TypeFor[T]().String()
}

// ProvideAs binds a factory under the injection key of T.
func ProvideAs[T any](c *Container, f func(*Container) (T, error)) {
	c.Provide(Key[T](), func(c *Container) (any, error) { return f(c) })
}

// New returns a factory producing a zero *T.
func New[T any]() Factory {
	return func(*Container) (any, error) { return new(T), nil }
}

// Constructor returns a factory that resolves keys in order and passes them
// to fn. fn must return the value, optionally followed by an error.
func Constructor(fn any, keys ...string) Factory {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		panic(fmt.Sprintf("kit: constructor must be a function, got %s", t))
	}
	if t.NumIn() != len(keys) {
		panic(fmt.Sprintf("kit: constructor %s takes %d arguments, %d keys given", t, t.NumIn(), len(keys)))
	}
	if t.NumOut() == 0 || t.NumOut() > 2 {
		panic(fmt.Sprintf("kit: constructor %s must return a value and an optional error", t))
	}

	return func(c *Container) (any, error) {
		args := make([]reflect.Value, len(keys))
		for i, key := range keys {
			dep, err := c.Resolve(key)
			if err != nil {
				return nil, err
			}
			in := t.In(i)
			if dep == nil {
				args[i] = reflect.Zero(in)
				continue
			}
			dv := reflect.ValueOf(dep)
			if !dv.Type().AssignableTo(in) {
				return nil, errors.Newf("kit: %q resolved to %s, constructor wants %s", key, dv.Type(), in)
			}
			args[i] = dv
		}
		out := v.Call(args)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}
}
