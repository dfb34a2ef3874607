package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	res, err := Load(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.True(t, res.Options.IsEmpty())
	assert.Empty(t, res.Files)
	assert.Len(t, res.Skipped, 1)
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.conf", "")
	res, err := Load(path)
	require.NoError(t, err)
	assert.True(t, res.Options.IsEmpty())
}

func TestLoadMissingSection(t *testing.T) {
	path := writeFile(t, t.TempDir(), "other.conf", "[other]\nkeep = 3\n")
	res, err := Load(path)
	require.NoError(t, err)
	assert.True(t, res.Options.IsEmpty())
	assert.Equal(t, []string{path}, res.Skipped)
}

func TestLoadSectionNameIsCaseSensitive(t *testing.T) {
	path := writeFile(t, t.TempDir(), "upper.conf", "[MAIN]\nkeep = 3\n")
	res, err := Load(path)
	require.NoError(t, err)
	assert.True(t, res.Options.IsEmpty())
	assert.Equal(t, []string{path}, res.Skipped)
}

func TestLoadKeyNamesAreCaseInsensitive(t *testing.T) {
	path := writeFile(t, t.TempDir(), "keys.conf", "[main]\nKeep = 3\nPURGE = yes\n")
	res, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, res.Options.Keep)
	require.NotNil(t, res.Options.Purge)
	assert.Equal(t, 3, *res.Options.Keep)
	assert.True(t, *res.Options.Purge)
	assert.Empty(t, res.Ignored)
}

func TestLoadEmptySection(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bare.conf", "[main]\n")
	res, err := Load(path)
	require.NoError(t, err)
	assert.True(t, res.Options.IsEmpty())
}

func TestLoadINI(t *testing.T) {
	path := writeFile(t, t.TempDir(), "kthresher.conf", `[main]
headers = yes
keep = 2
purge = off
verbose = True
colour = blue
`)
	res, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, res.Options.Headers)
	require.NotNil(t, res.Options.Keep)
	require.NotNil(t, res.Options.Purge)
	require.NotNil(t, res.Options.Verbose)
	assert.True(t, *res.Options.Headers)
	assert.Equal(t, 2, *res.Options.Keep)
	assert.False(t, *res.Options.Purge)
	assert.True(t, *res.Options.Verbose)
	assert.Equal(t, []string{path + ": colour"}, res.Ignored)
	assert.Equal(t, []string{path}, res.Files)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "kthresher.toml", `[main]
headers = true
keep = 4
`)
	res, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, res.Options.Keep)
	assert.Equal(t, 4, *res.Options.Keep)
	assert.True(t, *res.Options.Headers)
	assert.Nil(t, res.Options.Purge)
}

func TestLoadParseError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.conf", "[main]\nthis line has no delimiter\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrParse)

	path = writeFile(t, t.TempDir(), "broken.toml", "[main\nkeep = ")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrParse)
}

func TestLoadInvalidValuesAreAggregated(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.conf", `[main]
headers = maybe
keep = lots
purge = 2
`)
	_, err := Load(path)
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 3)
	assert.ErrorIs(t, err, ErrInvalidBool)
	assert.ErrorIs(t, err, ErrInvalidInt)
}

func TestLoadKeepOutOfRange(t *testing.T) {
	for _, keep := range []string{"10", "-1", "99"} {
		path := writeFile(t, t.TempDir(), "keep.conf", "[main]\nkeep = "+keep+"\n")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidKeep, "keep = %s", keep)
	}
}

func TestLoadIncludeOverridesParent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conf.d/b.conf", "[main]\nkeep = 3\n")
	writeFile(t, dir, "conf.d/a.conf", "[main]\nkeep = 2\npurge = yes\n")
	main := writeFile(t, dir, "kthresher.conf", fmt.Sprintf("[main]\nkeep = 1\nheaders = no\ninclude = %s\n",
		filepath.Join(dir, "conf.d", "*.conf")))

	res, err := Load(main)
	require.NoError(t, err)

	assert.Equal(t, []string{
		main,
		filepath.Join(dir, "conf.d", "a.conf"),
		filepath.Join(dir, "conf.d", "b.conf"),
	}, res.Files)
	assert.Equal(t, 3, *res.Options.Keep)
	assert.True(t, *res.Options.Purge)
	assert.False(t, *res.Options.Headers)
}

func TestLoadIncludeNoMatches(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "kthresher.conf", fmt.Sprintf("[main]\nkeep = 2\ninclude = %s\n",
		filepath.Join(dir, "nothing", "*.conf")))

	res, err := Load(main)
	require.NoError(t, err)
	assert.Equal(t, 2, *res.Options.Keep)
}

func TestLoadIncludeLoop(t *testing.T) {
	t.Run("self", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "self.conf")
		writeFile(t, dir, "self.conf", "[main]\ninclude = "+path+"\n")

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrIncludeLoop)
	})

	t.Run("indirect", func(t *testing.T) {
		dir := t.TempDir()
		a := filepath.Join(dir, "a.conf")
		b := filepath.Join(dir, "b.conf")
		writeFile(t, dir, "a.conf", "[main]\nkeep = 1\ninclude = "+b+"\n")
		writeFile(t, dir, "b.conf", "[main]\nkeep = 2\ninclude = "+a+"\n")

		_, err := Load(a)
		assert.ErrorIs(t, err, ErrIncludeLoop)
	})

	t.Run("shared include is not a loop", func(t *testing.T) {
		dir := t.TempDir()
		shared := writeFile(t, dir, "shared/common.conf", "[main]\nheaders = yes\n")
		writeFile(t, dir, "parts/one.conf", "[main]\ninclude = "+shared+"\n")
		writeFile(t, dir, "parts/two.conf", "[main]\ninclude = "+shared+"\n")
		main := writeFile(t, dir, "main.conf", "[main]\ninclude = "+filepath.Join(dir, "parts", "*.conf")+"\n")

		res, err := Load(main)
		require.NoError(t, err)
		assert.True(t, *res.Options.Headers)
	})
}

func TestApplyOverridesOnlySetOptions(t *testing.T) {
	keep := 5
	purge := true
	opts := Defaults()
	opts.Headers = true

	FileOptions{Keep: &keep, Purge: &purge}.Apply(&opts)

	assert.Equal(t, Options{Headers: true, Keep: 5, Purge: true}, opts)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
	assert.ErrorIs(t, Options{Keep: 10}.Validate(), ErrInvalidKeep)
	assert.ErrorIs(t, Options{Keep: -1}.Validate(), ErrInvalidKeep)
}

// TestKeepRoundTrip checks that any keep value written to a file is loaded
// back when in range and rejected otherwise
func TestKeepRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	dir := t.TempDir()

	properties.Property("keep loads iff within 0..9", prop.ForAll(
		func(keep int) bool {
			path := filepath.Join(dir, fmt.Sprintf("keep-%d.conf", keep))
			if err := os.WriteFile(path, []byte(fmt.Sprintf("[main]\nkeep = %d\n", keep)), 0644); err != nil {
				return false
			}
			res, err := Load(path)
			if keep < 0 || keep > MaxKeep {
				return errors.Is(err, ErrInvalidKeep)
			}
			return err == nil && res.Options.Keep != nil && *res.Options.Keep == keep
		},
		gen.IntRange(-20, 30),
	))

	properties.TestingRun(t)
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{"yes", true, false},
		{"On", true, false},
		{"1", true, false},
		{"TRUE", true, false},
		{"no", false, false},
		{"off", false, false},
		{"0", false, false},
		{"False", false, false},
		{"y", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseBool(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBool)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
