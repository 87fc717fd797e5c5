package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcesHaveNoBlankLineRuns(t *testing.T) {
	for _, root := range []string{"..", "../../internal", "../../jobs"} {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
				return err
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			assert.NotContains(t, string(src), "\n\n\n", path)
			return nil
		})
		require.NoError(t, err)
	}
}
