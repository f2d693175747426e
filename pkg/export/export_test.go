package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Headers: []string{"Student", "Email", "Joined"},
		Rows: []map[string]string{
			{"Student": "Ada", "Email": "ada@example.com", "Joined": "2026-02-01"},
			{"Student": "Grace", "Email": "grace@example.com", "Joined": "2026-02-03"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.Equal(t, "Student,Email,Joined\nAda,ada@example.com,2026-02-01\nGrace,grace@example.com,2026-02-03\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(rosterDataset(), "Roster: Algebra")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}
