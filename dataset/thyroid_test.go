package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitake/thyroidset/transform"
)

// createThyroidTree builds the standard thyroid datasource layout with
// perClass marker images in each class directory.
func createThyroidTree(t testing.TB, perClass int) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"Malignant_Markers_Crop", "Benign_Markers_Crop"} {
		classDir := filepath.Join(root, dir)
		require.NoError(t, os.MkdirAll(classDir, 0755))
		for i := 0; i < perClass; i++ {
			writeMarkerPNG(t, filepath.Join(classDir, fmt.Sprintf("marker_%03d.png", i)))
		}
	}
	return root
}

func TestNewThyroid(t *testing.T) {
	root := createThyroidTree(t, 30)

	t.Run("ValPhase", func(t *testing.T) {
		ds, err := NewThyroid(root, transform.PhaseVal, transform.Square(32))
		require.NoError(t, err)

		// 24 validation images per class.
		assert.Equal(t, 48, ds.Len())
		assert.Equal(t, []string{"benign", "malignant"}, ds.Labels())
		assert.Equal(t, transform.PhaseVal, ds.Phase())
		assert.Equal(t, root, ds.Source().Root)

		label, err := ds.ClassLabel(0)
		require.NoError(t, err)
		assert.Equal(t, "benign", label)
	})

	t.Run("TrainPhase", func(t *testing.T) {
		ds, err := NewThyroid(root, transform.PhaseTrain, transform.Square(32))
		require.NoError(t, err)

		// 30-24 training images per class.
		assert.Equal(t, 12, ds.Len())
	})

	t.Run("DefaultTarget", func(t *testing.T) {
		ds, err := NewThyroid(root, transform.PhaseVal, transform.Size{})
		require.NoError(t, err)

		sample, err := ds.GetItem(0)
		require.NoError(t, err)
		c, h, w := sample.Image.Dims()
		assert.Equal(t, 3, c)
		assert.Equal(t, DefaultTargetSize, h)
		assert.Equal(t, DefaultTargetSize, w)
	})
}

func TestThyroidTestPhaseReusesValidation(t *testing.T) {
	root := createThyroidTree(t, 26)

	val, err := NewThyroid(root, transform.PhaseVal, transform.Square(16))
	require.NoError(t, err)
	test, err := NewThyroid(root, transform.PhaseTest, transform.Square(16))
	require.NoError(t, err)

	// The datasource has no held-out test set; the test phase serves the
	// validation split.
	require.Equal(t, val.Len(), test.Len())

	valSample, err := val.GetItem(0)
	require.NoError(t, err)
	testSample, err := test.GetItem(0)
	require.NoError(t, err)
	assert.Equal(t, valSample.Meta.Path, testSample.Meta.Path)
}

func TestNewThyroidTooFewImages(t *testing.T) {
	root := createThyroidTree(t, 10)

	_, err := NewThyroid(root, transform.PhaseTrain, transform.Square(32))
	assert.ErrorIs(t, err, ErrValidationSize)
}

func TestThyroidSummary(t *testing.T) {
	root := createThyroidTree(t, 25)

	ds, err := NewThyroid(root, transform.PhaseVal, transform.Square(16))
	require.NoError(t, err)

	summary := ds.Summary()
	assert.Contains(t, summary, "Thyroid Marker Dataset (val)")
	assert.Contains(t, summary, root)
	assert.Contains(t, summary, "benign: 24 samples")
	assert.Contains(t, summary, "malignant: 24 samples")
}
