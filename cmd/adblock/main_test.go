package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	filterPath := filepath.Join(dir, "filter.txt")
	blobPath := filepath.Join(dir, "rules.bin")

	const rulesText = "||ads.example^$script\n@@||ads.example/ok/\n"
	require.NoError(t, os.WriteFile(filterPath, []byte(rulesText), 0o600))

	ctx := context.Background()
	logger := slogutil.NewDiscardLogger()

	out := &strings.Builder{}
	err := run(ctx, &Options{
		FilterLists: []string{filterPath},
		Output:      blobPath,
		URLs:        []string{"https://ads.example/a.js", "https://ads.example/ok/a.js"},
		Domain:      "example.org",
		Types:       "script,third-party",
		Compress:    true,
	}, logger, out)
	require.NoError(t, err)

	assert.Equal(
		t,
		"BLOCK\thttps://ads.example/a.js\t||ads.example^$script\n"+
			"ALLOW\thttps://ads.example/ok/a.js\t@@||ads.example/ok/\n",
		out.String(),
	)

	out.Reset()
	err = run(ctx, &Options{
		Input:  blobPath,
		URLs:   []string{"https://ads.example/a.js", "https://clean.example/"},
		Domain: "example.org",
		Types:  "image",
	}, logger, out)
	require.NoError(t, err)

	assert.Equal(
		t,
		"ALLOW\thttps://ads.example/a.js\t-\n"+
			"ALLOW\thttps://clean.example/\t-\n",
		out.String(),
	)
}

func TestRun_config(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	filterPath := filepath.Join(dir, "filter.txt")
	blobPath := filepath.Join(dir, "rules.bin")
	confPath := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(filterPath, []byte("||ads.example^\n"), 0o600))

	conf := "filter_files: [" + filterPath + "]\nblob: " + blobPath + "\nworkers: 1\n"
	require.NoError(t, os.WriteFile(confPath, []byte(conf), 0o600))

	opts := &Options{
		ConfigPath: confPath,
		URLs:       []string{"https://ads.example/"},
		Domain:     "example.org",
	}

	out := &strings.Builder{}
	err := run(context.Background(), opts, slogutil.NewDiscardLogger(), out)
	require.NoError(t, err)

	assert.Equal(t, "BLOCK\thttps://ads.example/\t||ads.example^\n", out.String())
	assert.FileExists(t, blobPath)
}

func TestRun_errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger := slogutil.NewDiscardLogger()

	err := run(context.Background(), &Options{
		FilterLists: []string{filepath.Join(dir, "missing.txt")},
	}, logger, &strings.Builder{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = run(context.Background(), &Options{
		Input: filepath.Join(dir, "missing.bin"),
	}, logger, &strings.Builder{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = run(context.Background(), &Options{
		URLs:  []string{"https://ads.example/"},
		Types: "script,bogus",
	}, logger, &strings.Builder{})
	assert.Error(t, err)
}

func TestRun_emptyDomain(t *testing.T) {
	t.Parallel()

	filterPath := filepath.Join(t.TempDir(), "filter.txt")
	require.NoError(t, os.WriteFile(filterPath, []byte("||ads.example^\n"), 0o600))

	out := &strings.Builder{}
	err := run(context.Background(), &Options{
		FilterLists: []string{filterPath},
		URLs:        []string{"https://ads.example/"},
		Domain:      "",
	}, slogutil.NewDiscardLogger(), out)
	require.NoError(t, err)

	assert.Equal(t, "ALLOW\thttps://ads.example/\t-\n", out.String())
}
