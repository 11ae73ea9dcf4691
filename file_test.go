package salesbot

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSourceKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fileName string
		mimeType string
		want     SourceKind
	}{
		{"native spreadsheet by MIME", "Vendas 2024", MIMESpreadsheet, KindSpreadsheet},
		{"xlsx by MIME", "vendas.xlsx", MIMEXLSX, KindXLSX},
		{"csv by MIME", "vendas.csv", MIMECSV, KindCSV},
		{"parquet by MIME", "vendas.parquet", MIMEParquet, KindParquet},
		{"csv by extension with generic MIME", "vendas.csv", "application/octet-stream", KindCSV},
		{"gzipped csv by extension", "vendas.csv.gz", "application/gzip", KindCSV},
		{"zstd csv by extension", "vendas.CSV.zst", "application/octet-stream", KindCSV},
		{"xlsx by extension", "Relatorio.XLSX", "application/octet-stream", KindXLSX},
		{"parquet by extension", "dados.parquet", "application/octet-stream", KindParquet},
		{"pdf is unsupported", "nota.pdf", "application/pdf", KindUnsupported},
		{"no extension no known MIME", "LEIAME", "application/octet-stream", KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectSourceKind(tt.fileName, tt.mimeType))
		})
	}
}

func TestSourceKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "spreadsheet", KindSpreadsheet.String())
	assert.Equal(t, "csv", KindCSV.String())
	assert.Equal(t, "unsupported", KindUnsupported.String())
}

func TestDecompressPayload(t *testing.T) {
	t.Parallel()

	payload := []byte("data,quantidade\n01/01/2024,10\n")

	t.Run("plain passes through", func(t *testing.T) {
		t.Parallel()
		got, err := decompressPayload("vendas.csv", payload)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("gzip", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		_, err := w.Write(payload)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		got, err := decompressPayload("vendas.csv.gz", buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("zstd", func(t *testing.T) {
		t.Parallel()
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		compressed := enc.EncodeAll(payload, nil)
		require.NoError(t, enc.Close())

		got, err := decompressPayload("vendas.csv.zst", compressed)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("corrupt gzip errors", func(t *testing.T) {
		t.Parallel()
		_, err := decompressPayload("vendas.csv.gz", []byte("not gzip"))
		assert.Error(t, err)
	})
}
