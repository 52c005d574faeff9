package dstree

// FileFormat tags a resource's file format. The format determines the
// extension used for generated snapshot names and which post-processors
// apply (only ZIP has one).
type FileFormat string

// Recognized file formats.
const (
	FormatZIP       FileFormat = "ZIP"
	FormatCSV       FileFormat = "CSV"
	FormatGeoJSON   FileFormat = "GEOJSON"
	FormatJSON      FileFormat = "JSON"
	FormatArcGrid   FileFormat = "ARCGRID"
	FormatShapefile FileFormat = "SHAPEFILE"
	FormatKML       FileFormat = "KML"
)

// formatExtensions maps each format to its filename extension.
var formatExtensions = map[FileFormat]string{
	FormatZIP:       "zip",
	FormatCSV:       "csv",
	FormatGeoJSON:   "geo.json",
	FormatJSON:      "json",
	FormatArcGrid:   "grid",
	FormatShapefile: "shp",
	FormatKML:       "kml",
}

// Extension returns the filename extension for the format, or "unk" for an
// unrecognized one.
func (f FileFormat) Extension() string {
	if ext, ok := formatExtensions[f]; ok {
		return ext
	}

	return "unk"
}

// Known reports whether the format is one of the recognized values.
func (f FileFormat) Known() bool {
	_, ok := formatExtensions[f]

	return ok
}
