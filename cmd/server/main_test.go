package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("log:\n  level: debug\ndatabase:\n  inMemory: true\n"), 0600))

	tt := []struct {
		name string
		file string
		err  string
	}{
		{name: "Missing File", file: filepath.Join(dir, "nope.yaml"), err: "loading config"},
		{name: "Valid", file: valid},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			log, err := setup(test.file)
			if test.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.err)
				assert.Nil(t, log)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}
