package parameters

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	oerrors "github.com/porthorian/modeltest/pkg/errors"
)

// Namespace qualifies parameter names given without a dot.
const Namespace = "parameters"

type Constructor func() (Parameters, error)

// Registry maps fully-qualified parameter names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

var (
	ErrNilConstructor = errors.New("parameters: constructor is nil")
	ErrEmptyName      = errors.New("parameters: name is empty")
	ErrDuplicateName  = errors.New("parameters: name already registered")
)

// DefaultRegistry is the process registry populated by catalog.RegisterParameters.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		constructors: map[string]Constructor{},
	}
}

func (r *Registry) Register(name string, constructor Constructor) error {
	if constructor == nil {
		return ErrNilConstructor
	}

	name = Qualify(name)
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.constructors[name] = constructor
	return nil
}

// Resolve builds the parameter set registered under name.
func (r *Registry) Resolve(name string) (Parameters, error) {
	qualified := Qualify(name)

	r.mu.RLock()
	constructor, ok := r.constructors[qualified]
	r.mu.RUnlock()
	if !ok {
		return nil, oerrors.New(oerrors.CodeParameterNotFound, fmt.Sprintf("parameters: cannot find %s", qualified), nil)
	}

	params, err := instantiate(constructor)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.CodeParameterInvalid, fmt.Sprintf("parameters: cannot instantiate %s", qualified), err)
	}
	if params == nil {
		return nil, oerrors.New(oerrors.CodeParameterInvalid, fmt.Sprintf("parameters: %s produced no parameters", qualified), nil)
	}
	return params, nil
}

// instantiate runs constructor, turning a panic into an error and a typed
// nil result into a nil interface.
func instantiate(constructor Constructor) (params Parameters, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			params = nil
			err = fmt.Errorf("constructor panicked: %v", recovered)
		}
	}()

	params, err = constructor()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, nil
	}
	if value := reflect.ValueOf(params); isNilable(value.Kind()) && value.IsNil() {
		return nil, nil
	}
	return params, nil
}

func isNilable(kind reflect.Kind) bool {
	switch kind {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return true
	default:
		return false
	}
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Qualify prefixes a bare name with the parameters namespace.
func Qualify(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, ".") {
		return name
	}
	return Namespace + "." + name
}

var nameSeparator = regexp.MustCompile(`\s*,\s*`)

// ParseNames splits a comma separated list, dropping empty items.
func ParseNames(raw string) []string {
	var names []string
	for _, name := range nameSeparator.Split(raw, -1) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}
