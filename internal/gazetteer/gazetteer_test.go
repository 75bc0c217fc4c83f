package gazetteer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONPreservesOrder(t *testing.T) {
	path := writeFile(t, "locations.json", `{
		"zeta": {"name": "南门", "type": "building", "x": 5, "y": 1},
		"alpha": {"name": "东南门", "type": "building", "x": 9, "y": 2},
		"mid": {"name": "保卫处招领点", "type": "lost_and_found", "x": 0, "y": 0}
	}`)

	g, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"南门", "东南门", "保卫处招领点"}, g.Names())

	r, ok := g.Lookup("ALPHA")
	require.True(t, ok)
	assert.Equal(t, Record{Key: "alpha", Name: "东南门", Category: CategoryBuilding, X: 9, Y: 2}, r)
}

func TestLoadYAMLPreservesOrder(t *testing.T) {
	path := writeFile(t, "locations.yaml", `
library:
  name: 图书馆
  type: building
  x: 1
  y: 2
lf_desk:
  name: 服务台招领点
  type: lost_and_found
  x: 3
  y: 4
`)

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"图书馆", "服务台招领点"}, g.Names())
	assert.Len(t, g.ByCategory(CategoryLostAndFound), 1)
}

func TestLoadFailuresAreConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"malformed json", "bad.json", `{"a": {"name": "x", "x": 1`},
		{"top level array", "array.json", `[{"name": "x"}]`},
		{"missing name", "noname.json", `{"a": {"type": "building", "x": 1, "y": 1}}`},
		{"missing coordinate", "nocoord.json", `{"a": {"name": "A", "type": "building", "x": 1}}`},
		{"trailing data", "trailing.json", `{"a": {"name": "A", "x": 1, "y": 1}} {}`},
		{"yaml sequence", "seq.yaml", "- a\n- b\n"},
		{"empty yaml", "empty.yml", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestLoadDuplicateKeyKeepsLastValue(t *testing.T) {
	path := writeFile(t, "dup.json", `{
		"a": {"name": "A", "type": "building", "x": 1, "y": 1},
		"b": {"name": "B", "type": "building", "x": 2, "y": 2},
		"a": {"name": "A2", "type": "building", "x": 3, "y": 3}
	}`)

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"A2", "B"}, g.Names())

	r, ok := g.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 3, r.X)

	assert.Equal(t, 2, LoadOrEmpty(path).Len())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadOrEmptyDegrades(t *testing.T) {
	g := LoadOrEmpty(filepath.Join(t.TempDir(), "absent.json"))
	require.NotNil(t, g)
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.Names())
}

func TestFindByNameReturnsFirst(t *testing.T) {
	g := New(
		Record{Key: "a1", Name: "A", Category: "x", X: 1, Y: 1},
		Record{Key: "a2", Name: "A", Category: "y", X: 2, Y: 2},
	)

	r, ok := g.FindByName("A")
	require.True(t, ok)
	assert.Equal(t, "a1", r.Key)

	_, ok = g.FindByName("missing")
	assert.False(t, ok)
}

func TestRecordsReturnsCopy(t *testing.T) {
	g := New(Record{Key: "a", Name: "A"})
	rs := g.Records()
	rs[0].Name = "mutated"

	assert.Equal(t, "A", g.Records()[0].Name)
}

func TestBundledDatabaseLoads(t *testing.T) {
	g, err := Load(filepath.Join("..", "..", "data", "location_database.json"))
	require.NoError(t, err)

	assert.Greater(t, g.Len(), 0)
	assert.NotEmpty(t, g.ByCategory(CategoryLostAndFound))
	_, ok := g.FindByName("东南门")
	assert.True(t, ok)
}
