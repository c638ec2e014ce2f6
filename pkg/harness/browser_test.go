package harness

import (
	"testing"

	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
)

func TestNewLauncher(t *testing.T) {
	cfg := DefaultConfig().Browser
	cfg.Headless = true
	cfg.Width, cfg.Height = 1280, 800
	cfg.Bin = "/usr/bin/chromium"

	l := newLauncher(cfg)

	assert.True(t, l.Has(flags.Leakless), "the browser is reaped when the test binary dies")
	assert.True(t, l.Has(flags.Headless))
	assert.True(t, l.Has("no-sandbox"))
	assert.Equal(t, "1280,800", l.Get("window-size"))
	assert.Equal(t, "/usr/bin/chromium", l.Get(flags.Bin))
}

func TestNewLauncher_Headful(t *testing.T) {
	cfg := DefaultConfig().Browser
	cfg.Headless = false
	cfg.Width = 0

	l := newLauncher(cfg)

	assert.False(t, l.Has(flags.Headless))
	assert.False(t, l.Has("window-size"))
	assert.True(t, l.Has(flags.Leakless))
}
