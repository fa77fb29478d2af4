// Package entities registers all migration entities with the core registry.
// Import this package to ensure all entities are registered.
package entities

import "github.com/JonMunkholm/crmimport/internal/core"

func init() {
	registerAccounts()
	registerContacts()
	registerAssets()
	registerInvoices()
	registerProductStructures()
}

// Reference table names as passed to core.RunInput.References.
const (
	AccountsTable = "accounts"
	ProductsTable = "products"
)

// inline builds rename rules from source header to target field.
func inline(pairs map[string]string) core.MappingRules {
	rules := make(core.MappingRules, len(pairs))
	for src, target := range pairs {
		rules[core.NormalizeKey(src)] = target
	}
	return rules
}
