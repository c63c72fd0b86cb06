package extractor_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/notelens/pkg/service/extractor"
)

const fixtureJSON = `{
  "version": "0.16.1",
  "notes": {
    "10": {
      "uuid": "NOTE-A",
      "title": "Groceries",
      "plaintext": "milk and eggs",
      "creation_time": "2024-01-01 10:00:00 +0000",
      "modify_time": "2024-01-02 10:00:00 +0000",
      "folder_key": 2,
      "account_key": 1
    },
    "11": {
      "uuid": "NOTE-B",
      "title": "Old idea",
      "creation_time": "2024-01-01 10:00:00 +0000",
      "modify_time": "2024-01-01 11:00:00 +0000",
      "folder_key": 3,
      "account_key": 1
    }
  },
  "folders": {
    "2": {"uuid": "DefaultFolder-CloudKit", "name": "Notes"},
    "3": {"uuid": "TrashFolder-CloudKit", "name": "Recently Deleted"}
  },
  "accounts": {"1": {"name": "iCloud"}}
}`

const (
	writeFixture = `mkdir -p "$out/notes_rip/json" && cp "$dir/fixture.json" "$out/notes_rip/json/all_notes_1.json"`
	failAlways   = `echo "undefined method for nil" >&2; exit 1`
)

type fakeParser struct {
	dir    string
	ruby   string
	script string
	source string
}

// newFakeParser writes a shell script standing in for ruby. The script
// records every invocation under dir and then runs body with $out set to
// the workspace passed via -o.
func newFakeParser(t *testing.T, version, body string) *fakeParser {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake parser requires a POSIX shell")
	}

	dir := t.TempDir()
	scriptDir := filepath.Join(dir, "parser")
	sourceDir := filepath.Join(dir, "group.com.apple.notes")
	gt.NoError(t, os.MkdirAll(scriptDir, 0o755)).Required()
	gt.NoError(t, os.MkdirAll(sourceDir, 0o755)).Required()

	p := &fakeParser{
		dir:    dir,
		ruby:   filepath.Join(dir, "ruby"),
		script: filepath.Join(scriptDir, "notes_cloud_ripper.rb"),
		source: filepath.Join(sourceDir, "NoteStore.sqlite"),
	}

	gt.NoError(t, os.WriteFile(p.script, []byte("# parser"), 0o644)).Required()
	gt.NoError(t, os.WriteFile(p.source, []byte("sqlite"), 0o644)).Required()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "fixture.json"), []byte(fixtureJSON), 0o644)).Required()

	sh := `#!/bin/sh
dir="` + dir + `"
if [ "$1" = "--version" ]; then
  echo "ruby ` + version + ` (2023-03-30 revision e51014f9c0) [arm64-darwin22]"
  exit 0
fi
pwd > "$dir/cwd"
echo "$BUNDLE_PATH" > "$dir/bundle_path"
echo "$@" > "$dir/args"
count=$(cat "$dir/count" 2>/dev/null || echo 0)
count=$((count + 1))
echo "$count" > "$dir/count"
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
echo "$out" >> "$dir/workspaces"
` + body + "\n"
	gt.NoError(t, os.WriteFile(p.ruby, []byte(sh), 0o755)).Required()

	return p
}

func (p *fakeParser) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if os.IsNotExist(err) {
		return ""
	}
	gt.NoError(t, err).Required()
	return strings.TrimSpace(string(data))
}

func (p *fakeParser) newExtractor(t *testing.T, opts ...extractor.Option) *extractor.Extractor {
	opts = append([]extractor.Option{extractor.WithTempDir(t.TempDir())}, opts...)
	return extractor.New(p.ruby, p.script, p.source, opts...)
}

func TestExtract_Success(t *testing.T) {
	p := newFakeParser(t, "3.2.2", writeFixture)
	x := p.newExtractor(t)

	var fractions []float64
	tree, err := x.Extract(t.Context(), "", func(fraction float64, message string) {
		fractions = append(fractions, fraction)
	})
	gt.NoError(t, err).Required()

	gt.Number(t, len(tree.Notes)).Equal(2)
	gt.Number(t, len(tree.Folders)).Equal(2)
	trashID, ok := tree.TrashFolderID()
	gt.Bool(t, ok).True()
	gt.Value(t, trashID).Equal("3")

	t.Run("command line follows bundler conventions", func(t *testing.T) {
		args := p.read(t, "args")
		gt.String(t, args).Contains("-S bundle exec ruby notes_cloud_ripper.rb")
		gt.String(t, args).Contains("-m " + filepath.Dir(p.source))
		gt.String(t, args).Contains("-g -o ")
		gt.String(t, p.read(t, "bundle_path")).Equal(filepath.Join(filepath.Dir(p.script), "vendor", "bundle"))
	})

	t.Run("runs in the parser directory", func(t *testing.T) {
		cwd, err := filepath.EvalSymlinks(p.read(t, "cwd"))
		gt.NoError(t, err).Required()
		want, err := filepath.EvalSymlinks(filepath.Dir(p.script))
		gt.NoError(t, err).Required()
		gt.Value(t, cwd).Equal(want)
	})

	t.Run("progress starts at zero and ends at one", func(t *testing.T) {
		gt.Array(t, fractions).Length(3).Required()
		gt.Value(t, fractions[0]).Equal(0.0)
		gt.Value(t, fractions[len(fractions)-1]).Equal(1.0)
	})

	t.Run("workspace is removed", func(t *testing.T) {
		for _, ws := range strings.Split(p.read(t, "workspaces"), "\n") {
			_, err := os.Stat(ws)
			gt.Bool(t, os.IsNotExist(err)).True()
		}
	})
}

func TestExtract_RetriesTransientFailure(t *testing.T) {
	body := `if [ "$count" -le 2 ]; then echo "busy" >&2; exit 1; fi
` + writeFixture
	p := newFakeParser(t, "3.2.2", body)
	x := p.newExtractor(t, extractor.WithMaxAttempts(3))

	tree, err := x.Extract(t.Context(), "", nil)
	gt.NoError(t, err).Required()
	gt.Number(t, len(tree.Notes)).Equal(2)
	gt.Value(t, p.read(t, "count")).Equal("3")

	workspaces := strings.Split(p.read(t, "workspaces"), "\n")
	gt.Array(t, workspaces).Length(3)
	gt.Bool(t, workspaces[0] != workspaces[1]).True()
	for _, ws := range workspaces {
		_, err := os.Stat(ws)
		gt.Bool(t, os.IsNotExist(err)).True()
	}
}

func TestExtract_GivesUpAfterMaxAttempts(t *testing.T) {
	p := newFakeParser(t, "3.2.2", failAlways)
	x := p.newExtractor(t, extractor.WithMaxAttempts(2))

	_, err := x.Extract(t.Context(), "", nil)
	gt.Error(t, err).Is(extractor.ErrExec)
	gt.Value(t, p.read(t, "count")).Equal("2")
}

func TestExtract_Timeout(t *testing.T) {
	p := newFakeParser(t, "3.2.2", `exec sleep 5`)
	x := p.newExtractor(t,
		extractor.WithTimeout(200*time.Millisecond),
		extractor.WithMaxAttempts(1),
	)

	start := time.Now()
	_, err := x.Extract(t.Context(), "", nil)
	gt.Error(t, err).Is(extractor.ErrExec)
	gt.Bool(t, time.Since(start) < 4*time.Second).True()
}

func TestExtract_MalformedOutput(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{
			name: "missing output file",
			body: `exit 0`,
		},
		{
			name: "not JSON",
			body: `mkdir -p "$out/notes_rip/json" && echo "not json" > "$out/notes_rip/json/all_notes_1.json"`,
		},
		{
			name: "missing top level key",
			body: `mkdir -p "$out/notes_rip/json" && echo '{"version":"1","notes":{},"folders":{}}' > "$out/notes_rip/json/all_notes_1.json"`,
		},
		{
			name: "note without modify_time",
			body: `mkdir -p "$out/notes_rip/json" && echo '{"version":"1","notes":{"1":{"title":"t","creation_time":"x","folder_key":1,"account_key":1}},"folders":{},"accounts":{}}' > "$out/notes_rip/json/all_notes_1.json"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newFakeParser(t, "3.2.2", tc.body)
			x := p.newExtractor(t, extractor.WithMaxAttempts(2))

			_, err := x.Extract(t.Context(), "", nil)
			gt.Error(t, err).Is(extractor.ErrOutput)
			// output errors are retried
			gt.Value(t, p.read(t, "count")).Equal("2")
		})
	}
}

func TestExtract_MissingSource(t *testing.T) {
	p := newFakeParser(t, "3.2.2", writeFixture)
	x := p.newExtractor(t)

	_, err := x.Extract(t.Context(), filepath.Join(p.dir, "missing", "NoteStore.sqlite"), nil)
	gt.Error(t, err).Is(extractor.ErrSourceUnavailable)
	gt.Value(t, p.read(t, "count")).Equal("")
}

func TestExtract_MissingRuby(t *testing.T) {
	p := newFakeParser(t, "3.2.2", writeFixture)
	x := extractor.New(filepath.Join(p.dir, "no-such-ruby"), p.script, p.source,
		extractor.WithTempDir(t.TempDir()),
		extractor.WithMaxAttempts(3),
	)

	_, err := x.Extract(t.Context(), "", nil)
	gt.Error(t, err).Is(extractor.ErrNotFound)
}

func TestExtract_MissingScript(t *testing.T) {
	p := newFakeParser(t, "3.2.2", writeFixture)
	x := extractor.New(p.ruby, filepath.Join(p.dir, "parser", "missing.rb"), p.source,
		extractor.WithTempDir(t.TempDir()),
	)

	_, err := x.Extract(t.Context(), "", nil)
	gt.Error(t, err).Is(extractor.ErrNotFound)
}

func TestVerify(t *testing.T) {
	t.Run("supported environment", func(t *testing.T) {
		p := newFakeParser(t, "3.3.0", writeFixture)
		gt.NoError(t, p.newExtractor(t).Verify(t.Context()))
	})

	t.Run("old ruby", func(t *testing.T) {
		p := newFakeParser(t, "2.7.8", writeFixture)
		gt.Error(t, p.newExtractor(t).Verify(t.Context())).Is(extractor.ErrEnv)
	})

	t.Run("missing script", func(t *testing.T) {
		p := newFakeParser(t, "3.3.0", writeFixture)
		gt.NoError(t, os.Remove(p.script)).Required()
		gt.Error(t, p.newExtractor(t).Verify(t.Context())).Is(extractor.ErrNotFound)
	})

	t.Run("missing source", func(t *testing.T) {
		p := newFakeParser(t, "3.3.0", writeFixture)
		gt.NoError(t, os.Remove(p.source)).Required()
		gt.Error(t, p.newExtractor(t).Verify(t.Context())).Is(extractor.ErrSourceUnavailable)
	})
}

func TestParseRubyVersion(t *testing.T) {
	testCases := []struct {
		out  string
		want [3]int
		ok   bool
	}{
		{out: "ruby 3.2.2 (2023-03-30 revision e51014f9c0) [arm64-darwin22]", want: [3]int{3, 2, 2}, ok: true},
		{out: "ruby 2.6.10p210 (2022-04-12 revision 67958) [universal.arm64e-darwin23]", want: [3]int{2, 6, 10}, ok: true},
		{out: "ruby 3.4", want: [3]int{3, 4, 0}, ok: true},
		{out: "ruby", ok: false},
		{out: "ruby x.y.z", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.out, func(t *testing.T) {
			got, err := extractor.ParseRubyVersion(tc.out)
			if !tc.ok {
				gt.Value(t, err).NotNil()
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, got).Equal(tc.want)
		})
	}
}

func TestCompareVersion(t *testing.T) {
	gt.Number(t, extractor.CompareVersion([3]int{3, 0, 0}, [3]int{3, 0, 0})).Equal(0)
	gt.Number(t, extractor.CompareVersion([3]int{2, 9, 9}, [3]int{3, 0, 0})).Equal(-1)
	gt.Number(t, extractor.CompareVersion([3]int{3, 1, 0}, [3]int{3, 0, 9})).Equal(1)
}
