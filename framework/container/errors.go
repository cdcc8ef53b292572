package container

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ── Sentinel errors ───────────────────────────────────────────────────────────

var (
	// ErrDuplicateDefinition is returned when a bean name (or alias) is already taken.
	ErrDuplicateDefinition = errors.New("duplicate bean definition")

	// ErrNoSuchBeanDefinition is returned when a required lookup has no candidate.
	ErrNoSuchBeanDefinition = errors.New("no such bean definition")

	// ErrAmbiguousDefinition is returned when several candidates remain and
	// neither a qualifier, a single primary nor a name match picks one.
	ErrAmbiguousDefinition = errors.New("ambiguous bean definition")

	// ErrCyclicDependency is returned when resolution revisits a bean that is
	// still being resolved. The error message includes the full cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrScopeNotActive is returned when a custom-scoped bean is resolved
	// without an active context of its scope in the given context.Context.
	ErrScopeNotActive = errors.New("scope not active")

	// ErrInitializationFailure wraps errors raised by factories and init hooks.
	ErrInitializationFailure = errors.New("bean initialization failed")

	// ErrDestructionFailure wraps errors raised by destroy hooks.
	ErrDestructionFailure = errors.New("bean destruction failed")

	// ErrInvalidDefinition is returned by Register for malformed definitions.
	ErrInvalidDefinition = errors.New("invalid bean definition")

	// ErrUnknownScope is returned when a definition or BeginScope names a
	// scope that was never registered.
	ErrUnknownScope = errors.New("unknown scope")

	// ErrScopeAlreadyActive is returned by BeginScope when the context id is
	// already live for that scope.
	ErrScopeAlreadyActive = errors.New("scope context already active")

	// ErrNotStarted is returned by lookups issued before Start.
	ErrNotStarted = errors.New("container not started")

	// ErrAlreadyStarted is returned by Register and Start once Start succeeded.
	ErrAlreadyStarted = errors.New("container already started")

	// ErrStopped is returned by lookups and BeginScope after Stop.
	ErrStopped = errors.New("container stopped")
)

// ── Structured errors ─────────────────────────────────────────────────────────

// AmbiguousError lists every candidate that matched a single-target lookup.
type AmbiguousError struct {
	Type       reflect.Type
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s: %d beans of type %s match [%s]",
		ErrAmbiguousDefinition, len(e.Candidates), e.Type, strings.Join(e.Candidates, ", "))
}

// Is reports whether target is ErrAmbiguousDefinition.
func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguousDefinition }

// CycleError carries the dependency path that closed a cycle. The first and
// last entries name the same bean.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Path, " -> "))
}

// Is reports whether target is ErrCyclicDependency.
func (e *CycleError) Is(target error) bool { return target == ErrCyclicDependency }

// Lifecycle phases reported by LifecycleError.
const (
	PhaseConstruct = "construct"
	PhaseInject    = "inject"
	PhaseInit      = "init"
	PhaseDestroy   = "destroy"
)

// LifecycleError reports a failure raised while a bean moved through its
// lifecycle. Destroy-phase errors match ErrDestructionFailure, every other
// phase matches ErrInitializationFailure.
type LifecycleError struct {
	Bean  string
	Phase string
	Err   error
}

func (e *LifecycleError) Error() string {
	if e.Phase == PhaseDestroy {
		return fmt.Sprintf("%s: bean %q: %v", ErrDestructionFailure, e.Bean, e.Err)
	}
	return fmt.Sprintf("%s: bean %q (%s): %v", ErrInitializationFailure, e.Bean, e.Phase, e.Err)
}

// Unwrap returns the underlying hook or factory error.
func (e *LifecycleError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's phase.
func (e *LifecycleError) Is(target error) bool {
	if e.Phase == PhaseDestroy {
		return target == ErrDestructionFailure
	}
	return target == ErrInitializationFailure
}
