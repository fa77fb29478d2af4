package entities

import "github.com/JonMunkholm/crmimport/internal/core"

func registerProductStructures() {
	productRef := func(name, source, target, idColumn string) core.Reference {
		return core.Reference{
			Name:        name,
			Table:       ProductsTable,
			SourceField: source,
			TargetField: target,
			KeyColumn:   "ProductCode",
			IDColumn:    idColumn,
			OnMiss:      core.MissDrop,
		}
	}

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Key:    "product_structures",
			Object: "Product_Structure__c",
			Label:  "Product Structures",
		},
		Mapping: inline(map[string]string{
			"Reg.č. Produktu": "Parent_Product_Code__c",
			"Reg. č. kusu":    "Product_Code__c",
			"Množství (MNF)":  "Quantity__c",
			"MJ evidence":     "Measure_of_Quantity__c",
			"Strom":           "Tree_Number__c",
		}),
		FieldSpecs: []core.FieldSpec{
			{Name: "Parent_Product_Code__c", Required: true, Type: core.FieldKey, Normalizer: StripQuotes},
			{Name: "Product_Code__c", Required: true, Type: core.FieldKey, Normalizer: StripQuotes},
			{Name: "Quantity__c", Type: core.FieldNumeric},
			{Name: "Measure_of_Quantity__c", Type: core.FieldText},
			{Name: "Tree_Number__c", Type: core.FieldText},
		},
		PreProcess: []core.RowHook{fixColumn("Tree_Number__c", FixTreeNumber)},
		References: []core.Reference{
			productRef("parent product", "Parent_Product_Code__c", "Parent_Product__c", "Salesforce_ID"),
			productRef("product", "Product_Code__c", "Product__c", "Salesforce_ID"),
			productRef("product name", "Product_Code__c", "Name", "Name"),
		},
		// A product cannot contain itself.
		Filter: func(rec core.Record) bool {
			return rec.Text("Parent_Product__c") != rec.Text("Product__c")
		},
		ImportID: core.ImportIDSpec{Prefix: "PS", Width: 4},
		Fields: []string{
			"Name", "Parent_Product__c", "Product__c",
			"Parent_Product_Code__c", "Product_Code__c",
			"Quantity__c", "Measure_of_Quantity__c", "Tree_Number__c",
		},
	})
}
