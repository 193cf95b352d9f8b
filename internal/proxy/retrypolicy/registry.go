package retrypolicy

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var registry sync.Map

// ErrDuplicatePolicy indicates a policy name is already registered.
var ErrDuplicatePolicy = errors.New("retry policy already registered")

func init() {
	MustRegister(Status())
	MustRegister(JSONNotFound())
}

// Register stores a policy under its normalized name.
func Register(policy Policy) error {
	key := normalizeName(policy.Name)
	if key == "" {
		return errors.New("policy name required")
	}
	if policy.ShouldRetry == nil {
		return errors.New("policy predicate required")
	}
	policy.Name = key
	if _, loaded := registry.LoadOrStore(key, policy); loaded {
		return ErrDuplicatePolicy
	}
	return nil
}

// MustRegister panics on registration failure.
func MustRegister(policy Policy) {
	if err := Register(policy); err != nil {
		panic(err)
	}
}

// Fetch retrieves a policy by name.
func Fetch(name string) (Policy, bool) {
	key := normalizeName(name)
	if key == "" {
		return Policy{}, false
	}
	if value, ok := registry.Load(key); ok {
		if policy, ok := value.(Policy); ok {
			return policy, true
		}
	}
	return Policy{}, false
}

// Resolve returns the named policy, or Default when the name is empty or unknown.
func Resolve(name string) Policy {
	if policy, ok := Fetch(name); ok {
		return policy
	}
	return Default()
}

// Default is the policy used when none is configured.
func Default() Policy {
	policy, _ := Fetch(NameStatus)
	return policy
}

// Keys returns the registered policy names in sorted order.
func Keys() []string {
	var keys []string
	registry.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// List returns the registered policies ordered by name.
func List() []Policy {
	keys := Keys()
	out := make([]Policy, 0, len(keys))
	for _, key := range keys {
		if policy, ok := Fetch(key); ok {
			out = append(out, policy)
		}
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
