package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("sync", &buf, DEBUG)

	logger.Infow("misalignment", "frame", 3)
	parts := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	test.That(t, len(parts), test.ShouldEqual, 6)
	test.That(t, parts[1], test.ShouldEqual, "INFO")
	test.That(t, parts[2], test.ShouldEqual, "sync")
	test.That(t, parts[3], test.ShouldContainSubstring, "logging/impl_test.go:")
	test.That(t, parts[4], test.ShouldEqual, "misalignment")
	test.That(t, parts[5], test.ShouldEqual, `{"frame": 3}`)
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("", &buf, DEBUG)
	sub := logger.Sublogger("align")
	sub.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)

	logger.Debug("dropped")
	sub.Infof("dropped %d", 1)
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Warnf("kept %d", 2)
	test.That(t, buf.String(), test.ShouldContainSubstring, "kept 2")

	level, err := LevelFromString("WARNING")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	level, err = LevelFromString("Debug")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, DEBUG)
	_, err = LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = LevelFromString("fatal")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSubloggerNames(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("align").Sublogger("cursor").With("frame", 4)
	sub.Warnw("camera behind", "object", 2)

	entries := logs.FilterMessage("camera behind").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "align.cursor")
	test.That(t, entries[0].ContextMap()["frame"], test.ShouldEqual, int64(4))
	test.That(t, entries[0].ContextMap()["object"], test.ShouldEqual, int64(2))
	test.That(t, entries[0].Caller.File, test.ShouldEndWith, "impl_test.go")
}

func TestFileLogger(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "evimo.log")
	logger, closeFile := NewFileLogger("generate", fn, INFO)
	logger.Debug("dropped")
	logger.Infow("wrote frame", "frame", 12)
	test.That(t, closeFile(), test.ShouldBeNil)

	contents, err := os.ReadFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "generate")
	test.That(t, string(contents), test.ShouldContainSubstring, `wrote frame	{"frame": 12}`)
	test.That(t, string(contents), test.ShouldNotContainSubstring, "dropped")
}
