package entities

import "github.com/JonMunkholm/crmimport/internal/core"

// InvoiceStatus maps the billing system's numeric state to the picklist.
var InvoiceStatus = map[string]string{
	"0": "STATE_FOR_REVIEW",
	"1": "STATE_APPROVED",
	"2": "STATE_PAID",
	"3": "STATE_FAILED",
}

func registerInvoices() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Key:    "invoices",
			Object: "Invoice__c",
			Label:  "Invoices",
		},
		MappingFile: "InvoicesMapping.sdl",
		FieldSpecs: []core.FieldSpec{
			{Name: "Org_Id__c", Required: true, Type: core.FieldKey},
			{Name: "Source_Name__c", Required: true, Type: core.FieldText},
			{Name: "Name", Type: core.FieldText},
			{Name: "Helios_invoice__c", Type: core.FieldBool},
			{Name: "Status__c", Type: core.FieldEnum, EnumValues: InvoiceStatus},
			{Name: "HM_Celkem_bez_z_lohy__c", Type: core.FieldNumeric},
			{Name: "Total_Amount__c", Type: core.FieldNumeric},
			{Name: "Max_no_of_Terminals_in_Month__c", Type: core.FieldNumeric},
		},
		// Invoices issued outside Helios carry no Helios number.
		PreProcess: []core.RowHook{emptyFlag("Helios_invoice__c")},
		References: []core.Reference{{
			Name:           "billing account",
			Table:          AccountsTable,
			SourceField:    "Org_Id__c",
			TargetField:    "Billing_Account__c",
			IDColumn:       core.ColumnID,
			OnMiss:         core.MissUseDefault,
			NamespaceField: "Source_Name__c",
			Namespaces: map[string]string{
				"helios":     "Helios_ID__c",
				"partnerweb": "PartnerWeb_ORG_ID__c",
			},
		}},
		ImportID: core.ImportIDSpec{Prefix: "INV", Width: 4, NaturalKey: "Name"},
	})
}
