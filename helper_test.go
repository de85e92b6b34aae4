package tripwire_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ezachrisen/tripwire"
	"github.com/ezachrisen/tripwire/filter"
	"github.com/ezachrisen/tripwire/rule"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const exampleRules = `
meta:
  name: example
rules:
  - if:
      - port: 443
      - server-name: "*.example.com"
    then:
      effects:
        - log: {message: example over tls}
  - if:
      - port: [22, "6000-6063"]
    then:
      effects: [drop]
  - if:
      - method: [POST, PUT]
      - expr: 'headers["content-type"].startsWith("multipart/")'
    then:
      effects:
        - log: {target: file, name: uploads}
    else:
      effects:
        - log: {target: file, name: other}
`

func decode(t *testing.T, doc string) *filter.File {
	t.Helper()
	f, err := rule.Decode[filter.Filter, filter.Effect](strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decoding rules: %v", err)
	}
	return f
}

func newEngine(t *testing.T, opts ...tripwire.EngineOption) (*tripwire.Engine, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]tripwire.EngineOption{tripwire.Logger(logrus.NewEntry(logger))}, opts...)
	return tripwire.NewEngine(opts...), hook
}

func compileExample(t *testing.T, opts ...tripwire.EngineOption) (*tripwire.Engine, *tripwire.Ruleset) {
	t.Helper()
	e, _ := newEngine(t, opts...)
	rs, err := e.Compile(decode(t, exampleRules))
	if err != nil {
		t.Fatalf("compiling: %v", err)
	}
	return e, rs
}

func writeFile(t *testing.T, path, doc string) {
	t.Helper()
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
}
