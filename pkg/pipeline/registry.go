package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Call carries the parsed literal arguments of one step invocation.
type Call struct {
	Args   []any
	Kwargs map[string]any
}

// Str returns the positional argument at index i as a string, or fallback
// when absent. Collaborator methods use it for optional path arguments.
func (c Call) Str(i int, fallback string) string {
	if i < len(c.Args) {
		if s, ok := c.Args[i].(string); ok {
			return s
		}
	}
	return fallback
}

// StepFunc is a resolved step callable.
type StepFunc func(ctx context.Context, call Call) error

// HelperMethod is a method on a lazily-constructed helper instance.
type HelperMethod func(ctx context.Context, recv any, call Call) error

// Helper describes a registered helper class: how to construct it and which
// methods it exposes as steps. Requires lists the constructor parameter
// names that must be satisfied from the provider table.
type Helper struct {
	Name     string
	Requires []string
	New      func(deps map[string]any) (any, error)
	Methods  map[string]HelperMethod
}

// Provider supplies a value for one recognized constructor parameter,
// pulled from live host state at construction time.
type Provider func() any

// Registry maps step-name strings to callables. It is built once at startup
// by the host registering its methods, module functions, and helper classes;
// resolution never reflects. Helper instances are cached for the lifetime of
// one run so repeated steps observe shared helper state.
type Registry struct {
	host      map[string]StepFunc
	funcs     map[string]map[string]StepFunc
	helpers   map[string]map[string]*Helper
	providers map[string]Provider
	instances map[string]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		host:      make(map[string]StepFunc),
		funcs:     make(map[string]map[string]StepFunc),
		helpers:   make(map[string]map[string]*Helper),
		providers: make(map[string]Provider),
		instances: make(map[string]any),
	}
}

// RegisterHost registers a zero-dot step bound to the host object.
func (r *Registry) RegisterHost(name string, fn StepFunc) {
	r.host[name] = fn
}

// RegisterFunc registers a free function under module.name.
func (r *Registry) RegisterFunc(module, name string, fn StepFunc) {
	if r.funcs[module] == nil {
		r.funcs[module] = make(map[string]StepFunc)
	}
	r.funcs[module][name] = fn
}

// RegisterHelper registers a helper class under module.Name, reachable as
// module.Name.method steps.
func (r *Registry) RegisterHelper(module string, h *Helper) {
	if r.helpers[module] == nil {
		r.helpers[module] = make(map[string]*Helper)
	}
	r.helpers[module][h.Name] = h
}

// Provide registers a value source for a recognized constructor parameter.
func (r *Registry) Provide(param string, p Provider) {
	r.providers[param] = p
}

// RegisterInstance pre-seeds the instance cache, bypassing auto-construction
// for the given module.Class key.
func (r *Registry) RegisterInstance(module, class string, inst any) {
	r.instances[module+"."+class] = inst
}

// Reset discards cached helper instances. Called between runs; caches never
// persist across runs.
func (r *Registry) Reset() {
	r.instances = make(map[string]any)
}

// HostSteps returns the sorted names of all host-bound steps, excluding
// internal (underscore-prefixed) registrations.
func (r *Registry) HostSteps() []string {
	names := make([]string, 0, len(r.host))
	for name := range r.host {
		if strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve turns a step name into a callable. It performs no execution, but
// may lazily construct and cache a helper instance for two-dot names.
func (r *Registry) Resolve(name string) (StepFunc, error) {
	parts := strings.Split(name, ".")
	switch len(parts) {
	case 1:
		return r.resolveHost(name)
	case 2:
		return r.resolveFunc(parts[0], parts[1])
	case 3:
		return r.resolveMethod(parts[0], parts[1], parts[2])
	}
	return nil, &NameResolutionError{
		Name:   name,
		Reason: "too many dots; maximum supported depth is module.ClassName.method",
	}
}

func (r *Registry) resolveHost(name string) (StepFunc, error) {
	if fn, ok := r.host[name]; ok {
		return fn, nil
	}
	var similar []string
	lower := strings.ToLower(name)
	for _, candidate := range r.HostSteps() {
		if strings.Contains(strings.ToLower(candidate), lower) {
			similar = append(similar, candidate)
		}
	}
	if len(similar) > 5 {
		similar = similar[:5]
	}
	return nil, &NameResolutionError{
		Name:        name,
		Reason:      "not found on host; for functions in other modules use module.function",
		Suggestions: similar,
	}
}

func (r *Registry) resolveFunc(module, attr string) (StepFunc, error) {
	full := module + "." + attr
	if fns, ok := r.funcs[module]; ok {
		if fn, ok := fns[attr]; ok {
			return fn, nil
		}
	}
	if classes, ok := r.helpers[module]; ok {
		if _, ok := classes[attr]; ok {
			return nil, &NameResolutionError{
				Name:   full,
				Reason: fmt.Sprintf("is a class, not callable directly; use %s.method_name to call a method", full),
			}
		}
	}
	if _, ok := r.funcs[module]; !ok {
		if _, ok := r.helpers[module]; !ok {
			return nil, &NameResolutionError{Name: full, Reason: fmt.Sprintf("unknown module %q", module)}
		}
	}
	return nil, &NameResolutionError{Name: full, Reason: fmt.Sprintf("%q not found in %q", attr, module)}
}

func (r *Registry) resolveMethod(module, class, method string) (StepFunc, error) {
	full := module + "." + class + "." + method
	classes, ok := r.helpers[module]
	if !ok {
		if _, ok := r.funcs[module]; ok {
			return nil, &NameResolutionError{Name: full, Reason: fmt.Sprintf("%s.%s is not a class", module, class)}
		}
		return nil, &NameResolutionError{Name: full, Reason: fmt.Sprintf("unknown module %q", module)}
	}
	h, ok := classes[class]
	if !ok {
		return nil, &NameResolutionError{Name: full, Reason: fmt.Sprintf("%q not found in %q", class, module)}
	}
	m, ok := h.Methods[method]
	if !ok {
		return nil, &NameResolutionError{Name: full, Reason: fmt.Sprintf("%s.%s has no method %q", module, class, method)}
	}
	inst, err := r.instance(module, h)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, call Call) error {
		return m(ctx, inst, call)
	}, nil
}

// instance returns the cached helper instance for this run, constructing it
// on first use from the provider table.
func (r *Registry) instance(module string, h *Helper) (any, error) {
	key := module + "." + h.Name
	if inst, ok := r.instances[key]; ok {
		return inst, nil
	}
	deps := make(map[string]any, len(h.Requires))
	for _, param := range h.Requires {
		p, ok := r.providers[param]
		if !ok {
			return nil, &ConstructionError{Class: key, Param: param}
		}
		deps[param] = p()
	}
	inst, err := h.New(deps)
	if err != nil {
		return nil, &ConstructionError{Class: key, Err: err}
	}
	r.instances[key] = inst
	return inst, nil
}
