// Package builtin registers the steps every steprunner binary ships with.
package builtin

import (
	"fmt"

	"github.com/ormasoftchile/steprunner/pkg/datastore"
	"github.com/ormasoftchile/steprunner/pkg/discovery"
)

func init() {
	Register(discovery.Default)
}

// Register adds the data store steps to c.
func Register(c *discovery.Catalog) {
	c.Step("Store <value> as <key> in the <scope> data store", store,
		discovery.Alias("Remember <value> as <key> for the <scope>"))
	c.Step("The <scope> data store has <key> equal to <value>", expectStored)
}

func store(value, key string, scope datastore.Scope) error {
	s, err := datastore.For(scope)
	if err != nil {
		return err
	}
	s.Put(key, value)
	return nil
}

func expectStored(scope datastore.Scope, key, want string) error {
	s, err := datastore.For(scope)
	if err != nil {
		return err
	}
	got, ok := s.Get(key)
	if !ok {
		return fmt.Errorf("%s data store has no key %q", scope, key)
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("%s data store key %q = %v, want %q", scope, key, got, want)
	}
	return nil
}
