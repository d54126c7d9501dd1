package domain

// Recognized extraction fields for property documents. Every field is
// reported as a FieldValue, never as a bare string.
const (
	FieldPropertyName   = "property_name"
	FieldLocation       = "location"
	FieldStation        = "station"
	FieldWalkMinutes    = "walk_minutes"
	FieldLandArea       = "land_area"
	FieldBuildingArea   = "building_area"
	FieldZoning         = "zoning"
	FieldCoverageRatio  = "coverage_ratio"
	FieldFloorAreaRatio = "floor_area_ratio"
	FieldPrice          = "price"
	FieldStructure      = "structure"
	FieldBuiltYear      = "built_year"
	FieldRoadInfo       = "road_info"
	FieldFrontage       = "frontage"
	FieldCurrentStatus  = "current_status"
	FieldYield          = "yield"
	FieldOccupancy      = "occupancy"
)

// ExtractionFields lists every recognized field name in canonical order.
var ExtractionFields = []string{
	FieldPropertyName,
	FieldLocation,
	FieldStation,
	FieldWalkMinutes,
	FieldLandArea,
	FieldBuildingArea,
	FieldZoning,
	FieldCoverageRatio,
	FieldFloorAreaRatio,
	FieldPrice,
	FieldStructure,
	FieldBuiltYear,
	FieldRoadInfo,
	FieldFrontage,
	FieldCurrentStatus,
	FieldYield,
	FieldOccupancy,
}

// FieldValue is one extracted field with the model-reported certainty.
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractedData is the aggregated result of one job. Immutable after the
// aggregator produces it.
type ExtractedData struct {
	Fields            map[string]FieldValue `json:"fields"`
	OverallConfidence float64               `json:"overall_confidence"`
}

// FileExtraction is the per-file result returned by the vision client
// before aggregation.
type FileExtraction struct {
	FileName string
	Fields   map[string]FieldValue
}
