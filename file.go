package salesbot

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// MIME types reported by the remote file store.
const (
	// MIMESpreadsheet is a native Google Sheets document, exported through
	// the Sheets API rather than downloaded.
	MIMESpreadsheet = "application/vnd.google-apps.spreadsheet"
	// MIMEXLSX is an uploaded Excel workbook.
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// MIMECSV is a plain CSV upload.
	MIMECSV = "text/csv"
	// MIMEParquet is an Apache Parquet upload.
	MIMEParquet = "application/vnd.apache.parquet"
)

// SourceKind classifies a remote file by how it must be fetched and parsed.
type SourceKind int

const (
	// KindUnsupported marks files the pipeline skips but still reports.
	KindUnsupported SourceKind = iota
	// KindSpreadsheet is a native spreadsheet read tab by tab.
	KindSpreadsheet
	// KindXLSX is a downloaded Excel workbook.
	KindXLSX
	// KindCSV is a downloaded CSV, possibly compressed.
	KindCSV
	// KindParquet is a downloaded Parquet file.
	KindParquet
)

// String returns the kind name used in logs and diagnostics.
func (k SourceKind) String() string {
	switch k {
	case KindSpreadsheet:
		return "spreadsheet"
	case KindXLSX:
		return "xlsx"
	case KindCSV:
		return "csv"
	case KindParquet:
		return "parquet"
	default:
		return "unsupported"
	}
}

// Compression extensions recognized on CSV uploads.
const (
	extCSV     = ".csv"
	extXLSX    = ".xlsx"
	extParquet = ".parquet"
	extGZ      = ".gz"
	extBZ2     = ".bz2"
	extXZ      = ".xz"
	extZSTD    = ".zst"
)

var compressionExts = []string{extGZ, extBZ2, extXZ, extZSTD}

// stripCompression removes a single trailing compression extension, if any.
func stripCompression(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range compressionExts {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// detectSourceKind classifies a file by MIME type first, then by file
// extension for stores that report a generic MIME for uploads. A compressed
// name like "vendas.csv.gz" still classifies as CSV.
func detectSourceKind(name, mimeType string) SourceKind {
	switch mimeType {
	case MIMESpreadsheet:
		return KindSpreadsheet
	case MIMEXLSX:
		return KindXLSX
	case MIMECSV:
		return KindCSV
	case MIMEParquet:
		return KindParquet
	}

	switch strings.ToLower(path.Ext(stripCompression(name))) {
	case extCSV:
		return KindCSV
	case extXLSX:
		return KindXLSX
	case extParquet:
		return KindParquet
	default:
		return KindUnsupported
	}
}

// isSupportedFile reports whether the listing entry can enter the pipeline.
func isSupportedFile(name, mimeType string) bool {
	return detectSourceKind(name, mimeType) != KindUnsupported
}

// decompressPayload unwraps a downloaded payload according to the trailing
// compression extension of its name. Uncompressed payloads pass through
// untouched.
func decompressPayload(name string, data []byte) ([]byte, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, extGZ):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)
	case strings.HasSuffix(lower, extBZ2):
		return io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
	case strings.HasSuffix(lower, extXZ):
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(r)
	case strings.HasSuffix(lower, extZSTD):
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return io.ReadAll(dec)
	default:
		return data, nil
	}
}
