package infra

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathsFor(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Paths
	}{
		{
			name: "defaults under home",
			want: Paths{
				DataDir:  "/home/ana/.local/share/overlaymon",
				StateDir: "/home/ana/.local/state/overlaymon",
				LogPath:  "/home/ana/.local/state/overlaymon/overlaymon.log",
				ImageDir: "/home/ana/.local/share/overlaymon/images",
			},
		},
		{
			name: "XDG overrides",
			env:  map[string]string{"XDG_DATA_HOME": "/data", "XDG_STATE_HOME": "/state"},
			want: Paths{
				DataDir:  "/data/overlaymon",
				StateDir: "/state/overlaymon",
				LogPath:  "/state/overlaymon/overlaymon.log",
				ImageDir: "/data/overlaymon/images",
			},
		},
		{
			name: "relative XDG values ignored",
			env:  map[string]string{"XDG_DATA_HOME": "data"},
			want: Paths{
				DataDir:  "/home/ana/.local/share/overlaymon",
				StateDir: "/home/ana/.local/state/overlaymon",
				LogPath:  "/home/ana/.local/state/overlaymon/overlaymon.log",
				ImageDir: "/home/ana/.local/share/overlaymon/images",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathsFor("/home/ana", func(k string) string { return tt.env[k] })
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestGetRealUserHome_WithoutSudo(t *testing.T) {
	t.Setenv("SUDO_USER", "")
	home, _ := os.UserHomeDir()
	assert.Equal(t, home, GetRealUserHome())
}

func TestDetectPaths_NotEmpty(t *testing.T) {
	p := DetectPaths()
	assert.NotEmpty(t, p.DataDir)
	assert.NotEmpty(t, p.LogPath)
}
