package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSyncFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    syncOptions
	}{
		{
			name: "single module",
			args: []string{"-module", "cgi"},
			want: syncOptions{moduleID: "cgi"},
		},
		{
			name: "all modules with clear",
			args: []string{"-all", "-clear"},
			want: syncOptions{all: true, clear: true},
		},
		{
			name: "single file",
			args: []string{"-module", "cgi", "-file", "note.pdf"},
			want: syncOptions{moduleID: "cgi", file: "note.pdf"},
		},
		{
			name:    "no target",
			args:    nil,
			wantErr: true,
		},
		{
			name:    "all and module conflict",
			args:    []string{"-all", "-module", "cgi"},
			wantErr: true,
		},
		{
			name:    "file without module",
			args:    []string{"-all", "-file", "note.pdf"},
			wantErr: true,
		},
		{
			name:    "file with clear",
			args:    []string{"-module", "cgi", "-file", "note.pdf", "-clear"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, err := parseSyncFlags(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts)
		})
	}
}
