package entities

import "github.com/JonMunkholm/crmimport/internal/core"

// DefaultAssetAccountID receives assets whose organization is unknown.
const DefaultAssetAccountID = "001J900000CASu4IAH"

func registerAssets() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Key:    "assets",
			Object: "Asset",
			Label:  "Assets",
		},
		MappingFile: "AssetsMapping.sdl",
		FieldSpecs: []core.FieldSpec{
			{Name: "PartnerWeb_ORG_ID__c", Required: true, Type: core.FieldKey},
			{Name: "SerialNumber", Type: core.FieldText},
		},
		References: []core.Reference{{
			Name:        "account",
			Table:       AccountsTable,
			SourceField: "PartnerWeb_ORG_ID__c",
			TargetField: "AccountId",
			KeyColumn:   "PartnerWeb_ORG_ID__c",
			IDColumn:    core.ColumnID,
			Default:     DefaultAssetAccountID,
			OnMiss:      core.MissUseDefault,
		}},
		ImportID: core.ImportIDSpec{Prefix: "ASSET", Width: 5},
		// Assets are named after their serial number.
		Finalize: []core.RecordHook{
			fallbackField("Name", "SerialNumber", core.DefaultImportIDField),
		},
	})
}
