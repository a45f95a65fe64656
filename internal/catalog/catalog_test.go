package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/chorale/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
- riemenschneider: 1
  bwv: "269"
  title: Aus meines Herzens Grunde
  tonal_center: G major
  time_signature: 3/4
- riemenschneider: 100
  bwv: "101.7"
  file: xml/scores/bwv101_7.musicxml
  title: Nimm von uns, Herr, du treuer Gott
  tonal_center: D minor
  time_signature: 4/4
- riemenschneider: 101
  bwv: "101.7"
  title: duplicate
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAndLookup(t *testing.T) {
	c, err := Load(writeCatalog(t, sampleCatalog))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	e, ok := c.Lookup("bwv101.7")
	require.True(t, ok)
	assert.Equal(t, "D minor", e.TonalCenter)
	assert.Equal(t, 100, e.Riemenschneider, "first entry for a stem wins")

	e, ok = c.Lookup("BWV269")
	require.True(t, ok)
	assert.Equal(t, "Aus meines Herzens Grunde", e.Title)

	_, ok = c.Lookup("bwv1.6")
	assert.False(t, ok)
}

func TestLoadJSON(t *testing.T) {
	c, err := Load(writeCatalog(t, `[{"bwv": "26.6", "tonal_center": "A minor"}]`))
	require.NoError(t, err)
	e, ok := c.Lookup("bwv26_6")
	require.True(t, ok)
	assert.Equal(t, "A minor", e.TonalCenter)
}

func TestLoadErrors(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeCatalog(t, "bwv: [unclosed"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	c := New([]Entry{{BWV: "101.7", Title: "Nimm von uns", TonalCenter: "D minor", TimeSignature: "4/4"}})

	doc := &model.Metadata{Title: "From the document"}
	merged := c.Merge(doc, "bwv101.7")

	assert.Equal(t, "From the document", merged.Title)
	assert.Equal(t, "BWV 101.7", merged.Catalog)
	assert.Equal(t, "D minor", merged.TonalCenter)
	assert.Equal(t, "4/4", merged.TimeSignature)
	assert.Empty(t, doc.TonalCenter, "input metadata must not be modified")

	unknown := c.Merge(nil, "bwv999")
	require.NotNil(t, unknown)
	assert.Empty(t, unknown.TonalCenter)

	var nilCatalog *Catalog
	assert.Equal(t, "x", nilCatalog.Merge(&model.Metadata{Title: "x"}, "bwv101.7").Title)
}
