// Package core provides the record reconciliation and batched upsert pipeline.
//
// This package is the heart of the migration tool, containing all domain
// logic independent of the source file format and of the remote CRM client.
// It can be driven by the CLI, by tests, or by any other frontend.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Entity Definitions: Registered via the registry, each entity has a
//     rename table, field specs, foreign-key references and an import id rule.
//   - Service: The main entry point. It turns a loaded source table into
//     upserted records and reconciliation artifacts.
//   - Upserter: The remote insert-or-update capability, bound per entity in
//     an [UpserterRegistry] built by the driver.
//
// # Entity Registry
//
// Entities are registered at init time using [Register]:
//
//	core.Register(EntityDefinition{
//	    Info:        EntityInfo{Key: "assets", Object: "Asset", Label: "Assets"},
//	    MappingFile: "AssetsMapping.sdl",
//	    FieldSpecs: []FieldSpec{
//	        {Name: "PartnerWeb_ORG_ID__c", Required: true, Type: FieldKey},
//	        {Name: "InstallDate", Type: FieldDate},
//	    },
//	    ImportID: ImportIDSpec{Prefix: "ASSET", Width: 5},
//	})
//
// # Pipeline
//
// [Service.Run] processes one entity in stages:
//
//  1. Rename columns and drop ignored ones ([Rename])
//  2. Check required columns ([ValidateColumns])
//  3. Coerce cells into typed values ([Normalizer])
//  4. Resolve foreign keys against reference tables ([Resolve])
//  5. Assign external ids and drop duplicates ([AssignImportIDs])
//  6. Write the debug snapshot, then submit in chunks ([Executor])
//  7. Pair results with records and write the artifacts ([Reporter])
//
// Records keep source row order through every stage. Result i always
// belongs to submitted record i.
//
// # Error Handling
//
// Structural problems (missing mapping file, missing required columns,
// missing reference tables) fail the run before any remote call. Cell-level
// problems never fail a run: unparsable values become null. Per-record
// rejections are reported in the error artifact, and a chunk-level failure
// stops the run with a [*ChunkError]. Technical errors are mapped to
// operator-facing messages using [MapError].
package core
