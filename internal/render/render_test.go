package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"nickandperla.net/elab/internal/message"
)

func sampleReport() Report {
	var log message.Log
	log = log.Add(message.Diagnostic{
		FileName: "Main",
		Offset:   11,
		Pos:      message.Position{Line: 2, Column: 9},
		Severity: message.Error,
		Class:    message.ClassUnresolved,
		Data:     "unknown identifier 'z'",
	})
	return Report{
		Module:       "Main",
		Output:       []string{"x : Nat"},
		Declarations: []string{"def x : Nat := 1"},
		Diagnostics:  log,
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"", "text", "json", "yaml"} {
		r, err := New(format, false)
		require.NoError(t, err, format)
		assert.NotNil(t, r)
	}
	_, err := New("xml", false)
	assert.Error(t, err)
}

func TestTextRender(t *testing.T) {
	r, err := New("text", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleReport()))
	assert.Equal(t, "x : Nat\nMain:2:9: error: unknown identifier 'z'\n", buf.String())
}

func TestTextRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Text{}).Render(&buf, Report{Module: "Main"}))
	assert.Empty(t, buf.String())
}

func TestTextDiagnosticColorKeepsMessage(t *testing.T) {
	d := sampleReport().Diagnostics.Entries()[0]
	out := (&Text{Color: true}).Diagnostic(d)
	assert.Contains(t, out, "unknown identifier 'z'")
	assert.Contains(t, out, "error:")
}

func TestJSONRender(t *testing.T) {
	r, err := New("json", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleReport()))

	var got reportView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Main", got.Module)
	assert.False(t, got.OK)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, "error", got.Diagnostics[0].Severity)
	assert.Equal(t, "unresolved", got.Diagnostics[0].Class)
	assert.Equal(t, 2, got.Diagnostics[0].Line)
	assert.Equal(t, []string{"def x : Nat := 1"}, got.Declarations)
}

func TestYAMLRenderEmptyLog(t *testing.T) {
	r, err := New("yaml", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, Report{Module: "Main"}))

	var got reportView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.True(t, got.OK)
	assert.Empty(t, got.Diagnostics)
	assert.Contains(t, buf.String(), "diagnostics: []")
}
