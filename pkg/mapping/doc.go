// Package mapping models X12-to-JSON mapping documents and resolves their
// extends chains.
//
// A document names output paths in "fields" and repeating writes in
// "segmentRules". A document may extend a parent and layer an "overrides"
// block on top of its own definitions:
//
//	{
//	  "extends": "../../standards/850.json",
//	  "fields": {"order.number": {"segment": "BEG", "element": 3}},
//	  "overrides": {"fields": {"order.date": {"segment": "BEG", "element": 5, "transform": "date_yyyymmdd"}}}
//	}
//
// Documents may be authored as JSON or YAML. Field order is preserved in
// both cases because it decides evaluation order.
package mapping
