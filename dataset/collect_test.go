package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	t.Run("ValidTree", func(t *testing.T) {
		root, dirs := createMarkerTree(t, map[string]int{"benign": 3, "malignant": 2})

		paths, err := Collect(dirs, root, "*.png")
		require.NoError(t, err)

		require.Len(t, paths["benign"], 3)
		require.Len(t, paths["malignant"], 2)

		// Glob returns lexical order, so the zero-padded names come back
		// in creation order.
		assert.Equal(t, filepath.Join(root, dirs["benign"], "marker_000.png"), paths["benign"][0])
		assert.Equal(t, filepath.Join(root, dirs["benign"], "marker_002.png"), paths["benign"][2])
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		root, dirs := createMarkerTree(t, map[string]int{"benign": 2})
		dirs["malignant"] = "no_such_dir"

		paths, err := Collect(dirs, root, "*.png")
		require.NoError(t, err)
		assert.Len(t, paths["benign"], 2)
		assert.Empty(t, paths["malignant"])
	})

	t.Run("PatternFiltersExtensions", func(t *testing.T) {
		root, dirs := createMarkerTree(t, map[string]int{"benign": 2})
		classDir := filepath.Join(root, dirs["benign"])
		require.NoError(t, os.WriteFile(filepath.Join(classDir, "notes.txt"), []byte("x"), 0644))

		paths, err := Collect(dirs, root, "*.png")
		require.NoError(t, err)
		assert.Len(t, paths["benign"], 2)
	})

	t.Run("BadPattern", func(t *testing.T) {
		root, dirs := createMarkerTree(t, map[string]int{"benign": 1})

		_, err := Collect(dirs, root, "[")
		require.Error(t, err)
		assert.ErrorIs(t, err, filepath.ErrBadPattern)
	})

	t.Run("NoClasses", func(t *testing.T) {
		paths, err := Collect(map[string]string{}, t.TempDir(), "*.png")
		require.NoError(t, err)
		assert.Empty(t, paths)
	})
}

func TestClassPathsLabels(t *testing.T) {
	paths := ClassPaths{
		"malignant": {"m1"},
		"benign":    {"b1"},
		"aaa":       nil,
	}
	assert.Equal(t, []string{"aaa", "benign", "malignant"}, paths.Labels())
}

func TestClassPathsTotal(t *testing.T) {
	paths := ClassPaths{
		"a": {"p1", "p2"},
		"b": {},
		"c": {"q1"},
	}
	assert.Equal(t, 3, paths.Total())
	assert.Equal(t, 0, ClassPaths{}.Total())
}

func TestLimitPerClass(t *testing.T) {
	paths := ClassPaths{
		"a": {"p1", "p2", "p3"},
		"b": {"q1"},
	}

	t.Run("Caps", func(t *testing.T) {
		limited := LimitPerClass(paths, 2)
		assert.Equal(t, []string{"p1", "p2"}, limited["a"])
		assert.Equal(t, []string{"q1"}, limited["b"])
	})

	t.Run("NonPositiveLeavesUnchanged", func(t *testing.T) {
		assert.Equal(t, paths, LimitPerClass(paths, 0))
		assert.Equal(t, paths, LimitPerClass(paths, -3))
	})

	t.Run("LargerThanClass", func(t *testing.T) {
		limited := LimitPerClass(paths, 10)
		assert.Equal(t, paths, limited)
	})
}
