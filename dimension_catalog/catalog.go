// dimension_catalog resolves which dimensions and measures are active, and how they are described.
package dimension_catalog

import "dimfilter/models"

// Descriptions used for active keys that have no metadata entry.
const (
	UndefinedDimension = "Undefined Dimension"
	UndefinedMeasure   = "Undefined Measure"
)

// ResolveDimensions returns one entry per key of the dimension feed, in feed order.
// Resolution is total: keys missing from the metadata get a placeholder description and an
// UnknownDimension diagnostic. An absent or empty feed yields no dimensions.
func ResolveDimensions(metadata models.Metadata) (dims []models.ResolvedDimension, diags []models.Diagnostic) {
	for _, key := range metadata.Feeds.Dimensions.Values {
		info, ok := metadata.Dimensions[key]
		if !ok {
			dims = append(dims, models.ResolvedDimension{ID: key, Description: UndefinedDimension, Key: key})
			diags = append(diags, models.Diagnostic{Kind: models.UnknownDimension, Key: key, Row: -1})
			continue
		}
		id, desc := describe(key, info.ID, info.Description)
		dims = append(dims, models.ResolvedDimension{ID: id, Description: desc, Key: key})
	}
	return
}

// ResolveMeasures is ResolveDimensions for the measure feed and the main structure members.
func ResolveMeasures(metadata models.Metadata) (measures []models.ResolvedMeasure, diags []models.Diagnostic) {
	for _, key := range metadata.Feeds.Measures.Values {
		info, ok := metadata.MainStructureMembers[key]
		if !ok {
			measures = append(measures, models.ResolvedMeasure{ID: key, Description: UndefinedMeasure, Key: key})
			diags = append(diags, models.Diagnostic{Kind: models.UnknownMeasure, Key: key, Row: -1})
			continue
		}
		id, desc := describe(key, info.ID, info.Description)
		measures = append(measures, models.ResolvedMeasure{ID: id, Description: desc, Key: key})
	}
	return
}

// describe applies the fallbacks: id defaults to the key, description to the id.
func describe(key, id, description string) (string, string) {
	if id == "" {
		id = key
	}
	if description == "" {
		description = id
	}
	return id, description
}
