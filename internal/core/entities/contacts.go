package entities

import "github.com/JonMunkholm/crmimport/internal/core"

// DefaultContactAccountID receives contacts whose organization is unknown.
const DefaultContactAccountID = "001J900000CASp3IAH"

func registerContacts() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Key:    "contacts",
			Object: "Contact",
			Label:  "Contacts",
		},
		MappingFile: "ContactsMapping.sdl",
		DropColumns: []string{"Unnamed: 15", "Organization ID", "Organization ID.1", "Country code", "ID"},
		FieldSpecs: []core.FieldSpec{
			{Name: "Org_ID__c", Required: true, Type: core.FieldKey},
		},
		References: []core.Reference{{
			Name:        "account",
			Table:       AccountsTable,
			SourceField: "Org_ID__c",
			TargetField: "AccountId",
			KeyColumn:   "PartnerWeb_ORG_ID__c",
			IDColumn:    core.ColumnID,
			Default:     DefaultContactAccountID,
			OnMiss:      core.MissUseDefault,
		}},
		ImportID: core.ImportIDSpec{Prefix: "CON", Width: 5},
	})
}
