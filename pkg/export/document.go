package export

// Document is a titled table rendered by the CSV and PDF exporters.
type Document struct {
	Title   string
	Summary []string
	Headers []string
	Rows    [][]string
	// Widths are relative column weights for PDF output. Optional.
	Widths []float64
}

// Exporter renders a document into a downloadable file.
type Exporter interface {
	Render(doc Document) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the exporter registered for a format name.
func ForFormat(format string) (Exporter, bool) {
	switch format {
	case "csv", "":
		return NewCSVExporter(), true
	case "pdf":
		return NewPDFExporter(), true
	default:
		return nil, false
	}
}
