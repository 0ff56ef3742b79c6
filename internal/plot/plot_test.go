package plot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/divesync/internal/analysis"
	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/chrissnell/divesync/pkg/gas"
	"github.com/chrissnell/divesync/pkg/zhl16"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testResult(t *testing.T) *deco.RunResult {
	t.Helper()
	p := deco.NewProfile()
	p.AddLevel(40, 12, gas.MustTrimix(0.25, 0.21))
	p.AddLevel(12, 10, gas.MustNitrox(0.32))

	res, err := deco.NewRunner(deco.New(deco.ZHL16(zhl16.VariantA))).Run(2, p)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "run.png")
	opts := DefaultOptions()
	opts.Ceiling = true

	if err := Render(testResult(t), path, opts); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, testResult(t), Options{Width: 4, Height: 3}); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestBuildAxes(t *testing.T) {
	res := testResult(t)

	p, err := Build(res, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if p.X.Max < 22 {
		t.Errorf("x axis should reach the end of the run, max %v", p.X.Max)
	}
}

func TestBuildEmpty(t *testing.T) {
	if _, err := Build(&deco.RunResult{}, DefaultOptions()); !errors.Is(err, analysis.ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}
	if err := Render(nil, "", DefaultOptions()); err == nil {
		t.Error("empty path should fail")
	}
}

func TestPath(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	if got := Path("plots", ts); got != filepath.Join("plots", "1700000000123.png") {
		t.Errorf("got %q", got)
	}
}
