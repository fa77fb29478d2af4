package entities

import "github.com/JonMunkholm/crmimport/internal/core"

func registerAccounts() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Key:    "accounts",
			Object: "Account",
			Label:  "Accounts",
		},
		// The export carries a title row above the header.
		HeaderRow: 1,
		Mapping: inline(map[string]string{
			"E-mail":                  "E_mail__c",
			"PartnerWeb Org ID":       "PartnerWeb_ORG_ID__c",
			"Helios ID":               "Helios_ID__c",
			"Name":                    "Name",
			"Phone":                   "Phone",
			"Blocked":                 "Blocked__c",
			"Blocked at":              "Blocked_on_date__c",
			"Created at last invoice": "Last_jnvoice_date__c",
			"Currency":                "Currency__c",
			"State":                   "State__c",
			"Verified":                "Verified__c",
			"Street address":          "BillingStreet",
			"ZIP":                     "BillingPostalCode",
			"City":                    "BillingCity",
			"Country":                 "BillingCountry",
		}),
		FieldSpecs: []core.FieldSpec{
			{Name: "Name", Required: true, Type: core.FieldText},
			{Name: "PartnerWeb_ORG_ID__c", Required: true, Type: core.FieldKey},
			{Name: "Helios_ID__c", Required: true, Type: core.FieldKey},
			{Name: "Phone", Type: core.FieldText, Normalizer: StripSpaces},
			{Name: "E_mail__c", Type: core.FieldText},
			{Name: "Blocked__c", Type: core.FieldBool},
			{Name: "Verified__c", Type: core.FieldBool},
			{Name: "Blocked_on_date__c", Type: core.FieldDate},
			{Name: "Last_jnvoice_date__c", Type: core.FieldDate},
			{Name: "Currency__c", Type: core.FieldText},
			{Name: "State__c", Type: core.FieldText},
			{Name: "BillingStreet", Type: core.FieldText},
			{Name: "BillingPostalCode", Type: core.FieldText},
			{Name: "BillingCity", Type: core.FieldText},
			{Name: "BillingCountry", Type: core.FieldText},
			{Name: "ShippingStreet", Type: core.FieldText},
			{Name: "ShippingPostalCode", Type: core.FieldText},
			{Name: "ShippingCity", Type: core.FieldText},
			{Name: "ShippingCountry", Type: core.FieldText},
		},
		PreProcess: []core.RowHook{
			copyColumns([][2]string{
				{"BillingStreet", "ShippingStreet"},
				{"BillingPostalCode", "ShippingPostalCode"},
				{"BillingCity", "ShippingCity"},
				{"BillingCountry", "ShippingCountry"},
			}),
		},
		ImportID: core.ImportIDSpec{Prefix: "ACC", Width: 4},
		Fields: []string{
			"Name", "Phone", "E_mail__c",
			"BillingStreet", "BillingPostalCode", "BillingCity", "BillingCountry",
			"ShippingStreet", "ShippingPostalCode", "ShippingCity", "ShippingCountry",
			"Blocked__c", "Blocked_on_date__c", "Last_jnvoice_date__c",
			"Currency__c", "State__c", "Verified__c",
			"PartnerWeb_ORG_ID__c", "Helios_ID__c",
		},
	})
}
