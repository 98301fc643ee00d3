package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/dslipak/pdf"
)

// Rasterizer renders every page of a PDF to one JPEG per page, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfBytes []byte) ([][]byte, error)
}

type PopplerRasterizer struct {
	Binary string
	DPI    int
}

func NewPopplerRasterizer(binary string) *PopplerRasterizer {
	if binary == "" {
		binary = config.PopplerBinary
	}
	return &PopplerRasterizer{Binary: binary, DPI: config.RasterDPI}
}

// PageCount parses the document and fails on anything that is not a readable PDF.
func PageCount(pdfBytes []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return 0, fmt.Errorf("failed to open pdf: %w", err)
	}
	n := r.NumPage()
	if n < 1 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}

func (p *PopplerRasterizer) Rasterize(ctx context.Context, pdfBytes []byte) ([][]byte, error) {
	pages, err := PageCount(pdfBytes)
	if err != nil {
		return nil, err
	}
	if _, err := exec.LookPath(p.Binary); err != nil {
		return nil, fmt.Errorf("%s not available: %w", p.Binary, err)
	}

	dir, err := os.MkdirTemp("", "raster-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	rasterCtx, cancel := context.WithTimeout(ctx, config.RasterTimeout)
	defer cancel()

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(rasterCtx, p.Binary, "-jpeg", "-r", strconv.Itoa(p.DPI), "-", prefix)
	cmd.Stdin = bytes.NewReader(pdfBytes)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %v, stderr: %s", p.Binary, err, strings.TrimSpace(stderr.String()))
	}

	files, err := pageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) != pages {
		return nil, fmt.Errorf("rendered %d pages, document has %d", len(files), pages)
	}
	images := make([][]byte, 0, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		images = append(images, b)
	}
	return images, nil
}

// pageFiles lists page-N.jpg outputs sorted by N; pdftoppm zero-pads N to the width of the page count.
func pageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		dash := strings.LastIndexByte(name, '-')
		if dash < 0 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name[dash+1:], ".jpg"))
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}
