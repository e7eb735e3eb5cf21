package preset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "synth.yaml", `
name: live set
tempo: 128
command_budget: 64
smoothing: 0.02
tracks:
  drums:
    solo: true
`)
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "live set", p.Config.Name)
	assert.Equal(t, 128.0, p.Config.Tempo)
	assert.Equal(t, 64, p.Config.CommandBudget)
	assert.Equal(t, 0.02, p.Config.Smoothing)
	require.NotNil(t, p.Tracks["drums"].Solo)
	assert.True(t, *p.Tracks["drums"].Solo)
	assert.Empty(t, p.SamplePath)
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "synth.yml", "tempo: 100\nbogus: 1\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "synth.conf", `{"tempo": 90}`)
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90.0, p.Config.Tempo)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "synth.json", `{"tempo": 100}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loaded := make(chan *Preset, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(p *Preset, err error) {
			if err == nil {
				loaded <- p
			}
		})
	}()

	// The watcher registers asynchronously; keep rewriting until a reload lands.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case p := <-loaded:
			assert.Equal(t, 150.0, p.Config.Tempo)
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte(`{"tempo": 150}`), 0o644))
		case <-deadline:
			t.Fatal("no reload within 5s")
		}
	}
}
