package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatcher(t *testing.T) {
	cases := []struct {
		name    string
		file    string // .ufsignore 内容，空表示不创建
		extra   []string
		ignored []string
		kept    []string
	}{
		{
			name:    "defaults only",
			ignored: []string{".ufs", ".ufs/blocks/aa", ".git", ".git/", "config.yaml", ".DS_Store", "sub/.env"},
			kept:    []string{"main.go", "data/model.bin", "."},
		},
		{
			name:    "user file",
			file:    "# comment\n*.log\ntemp\n!important.log\n",
			ignored: []string{".ufs", "app.log", "logs/error.log", "temp", "temp/file"},
			kept:    []string{"main.go", "important.log"},
		},
		{
			name:    "extra rules",
			extra:   []string{"*.tmp", "build/"},
			ignored: []string{"a.tmp", "x/y.tmp", "build/out.bin", "config.yaml"},
			kept:    []string{"a.txt", "builder.go"},
		},
		{
			name:    "extra rules override file",
			file:    "*.bin\n",
			extra:   []string{"!keep.bin"},
			ignored: []string{"weights.bin"},
			kept:    []string{"keep.bin"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if tc.file != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tc.file), 0o644))
			}

			m, err := NewMatcher(dir, tc.extra...)
			require.NoError(t, err)

			for _, p := range tc.ignored {
				assert.True(t, m.Matches(p), "expected %q to be ignored", p)
			}
			for _, p := range tc.kept {
				assert.False(t, m.Matches(p), "expected %q to be kept", p)
			}
		})
	}
}

func TestNewMatcher_IgnoreFileIsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, FileName), 0o755))

	_, err := NewMatcher(dir)
	assert.ErrorContains(t, err, "is a directory")
}

func TestMatcher_ZeroValue(t *testing.T) {
	var m Matcher
	assert.False(t, m.Matches("anything"))
}
