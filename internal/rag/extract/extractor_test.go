package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

type mockRasterizer struct {
	OnRasterize func(ctx context.Context, b []byte) ([][]byte, error)
}

func (m *mockRasterizer) Rasterize(ctx context.Context, b []byte) ([][]byte, error) {
	return m.OnRasterize(ctx, b)
}

type mockDetector struct {
	calls    int32
	OnDetect func(ctx context.Context, image []byte) (string, bool, error)
}

func (m *mockDetector) Detect(ctx context.Context, image []byte) (string, bool, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.OnDetect(ctx, image)
}

type mockVision struct {
	mu        sync.Mutex
	prompts   []string
	OnAnalyze func(ctx context.Context, b64 string) (json.RawMessage, error)
}

func (m *mockVision) Analyze(ctx context.Context, b64 string, systemPrompt string) (json.RawMessage, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, systemPrompt)
	m.mu.Unlock()
	return m.OnAnalyze(ctx, b64)
}

func pagesRasterizer(pages ...string) *mockRasterizer {
	return &mockRasterizer{OnRasterize: func(ctx context.Context, b []byte) ([][]byte, error) {
		out := make([][]byte, len(pages))
		for i, p := range pages {
			out[i] = []byte(p)
		}
		return out, nil
	}}
}

func pdfDoc() commonModels.Document {
	return commonModels.Document{Name: "notes.pdf", Kind: commonModels.PDF, Content: []byte("%PDF-1.4")}
}

func TestExtract_OCR_OneCallPerPageWithIsolation(t *testing.T) {
	det := &mockDetector{OnDetect: func(ctx context.Context, image []byte) (string, bool, error) {
		switch string(image) {
		case "p1":
			return "mitochondria", true, nil
		case "p2":
			return "", false, nil
		case "p3":
			return "", false, errors.New("vision backend down")
		}
		// slow page finishes last but must stay in position
		time.Sleep(20 * time.Millisecond)
		return "ribosome", true, nil
	}}
	e := NewExtractor(pagesRasterizer("p1", "p2", "p3", "p4"), det, nil, 4)

	text, err := e.Extract(context.Background(), pdfDoc(), commonModels.ModeCharacterRecognition, "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if det.calls != 4 {
		t.Errorf("detector called %d times, want 4", det.calls)
	}
	want := "mitochondria " + config.NoTextFoundMarker + " [page 3 could not be processed] ribosome"
	if text != want {
		t.Errorf("got %q\nwant %q", text, want)
	}
}

func TestExtract_TwoPagePDF(t *testing.T) {
	det := &mockDetector{OnDetect: func(ctx context.Context, image []byte) (string, bool, error) {
		return "text of " + string(image), true, nil
	}}
	e := NewExtractor(pagesRasterizer("page1", "page2"), det, nil, 0)

	text, err := e.Extract(context.Background(), pdfDoc(), commonModels.ModeCharacterRecognition, "")
	if err != nil {
		t.Fatal(err)
	}
	if text != "text of page1 text of page2" {
		t.Errorf("got %q", text)
	}
}

func TestExtract_Vision_FailedPageBecomesMarker(t *testing.T) {
	vis := &mockVision{OnAnalyze: func(ctx context.Context, b64 string) (json.RawMessage, error) {
		raw, _ := base64.StdEncoding.DecodeString(b64)
		if string(raw) == "p2" {
			return nil, apperr.BackendUnavailable("test", nil, "timeout")
		}
		return json.RawMessage(`{"image_detections":"seen ` + string(raw) + `"}`), nil
	}}
	e := NewExtractor(pagesRasterizer("p1", "p2", "p3"), nil, vis, 3)

	text, err := e.Extract(context.Background(), pdfDoc(), commonModels.ModeVisionAnalysis, "Focus on diagrams.")
	if err != nil {
		t.Fatalf("Extract should not fail: %v", err)
	}
	if text != "seen p1 [page 2 could not be processed] seen p3" {
		t.Errorf("got %q", text)
	}
	for _, p := range vis.prompts {
		if p != "Analyze the following image:\nFocus on diagrams." {
			t.Errorf("unexpected system prompt %q", p)
		}
	}
}

func TestExtract_ImageIsSinglePage(t *testing.T) {
	det := &mockDetector{OnDetect: func(ctx context.Context, image []byte) (string, bool, error) {
		return "whiteboard", true, nil
	}}
	raster := &mockRasterizer{OnRasterize: func(ctx context.Context, b []byte) ([][]byte, error) {
		t.Error("images must not be rasterized")
		return nil, nil
	}}
	e := NewExtractor(raster, det, nil, 2)

	doc := commonModels.Document{Name: "board.png", Kind: commonModels.IMAGE, Content: pngHeader}
	text, err := e.Extract(context.Background(), doc, commonModels.ModeCharacterRecognition, "")
	if err != nil || text != "whiteboard" || det.calls != 1 {
		t.Errorf("got %q, %v, calls=%d", text, err, det.calls)
	}
}

func TestExtract_DocumentErrors(t *testing.T) {
	failing := &mockRasterizer{OnRasterize: func(ctx context.Context, b []byte) ([][]byte, error) {
		return nil, errors.New("malformed pdf")
	}}
	det := &mockDetector{OnDetect: func(ctx context.Context, image []byte) (string, bool, error) {
		return "x", true, nil
	}}

	tests := []struct {
		name string
		doc  commonModels.Document
	}{
		{"rasterization fails", pdfDoc()},
		{"empty content", commonModels.Document{Kind: commonModels.PDF}},
		{"image kind with non-image bytes", commonModels.Document{Kind: commonModels.IMAGE, Content: []byte("plain text")}},
		{"unknown kind", commonModels.Document{Kind: "docx", Content: []byte("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(failing, det, nil, 1)
			_, err := e.Extract(context.Background(), tt.doc, commonModels.ModeCharacterRecognition, "")
			if !apperr.Is(err, apperr.KindDocumentProcessing) {
				t.Errorf("want DocumentProcessingError, got %v", err)
			}
		})
	}
	if det.calls != 0 {
		t.Errorf("detector should not be called, got %d", det.calls)
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	det := &mockDetector{OnDetect: func(c context.Context, image []byte) (string, bool, error) {
		cancel()
		return "x", true, nil
	}}
	e := NewExtractor(pagesRasterizer("p1", "p2", "p3"), det, nil, 1)

	_, err := e.Extract(ctx, pdfDoc(), commonModels.ModeCharacterRecognition, "")
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if det.calls >= 3 {
		t.Errorf("remaining pages should be abandoned, got %d calls", det.calls)
	}
}

func TestDetections(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"string", `{"image_detections":"a graph"}`, "a graph", false},
		{"list kept as json", `{"image_detections":["a","b"]}`, `["a","b"]`, false},
		{"missing field", `{"other":"x"}`, "", true},
		{"not json", `sure, here it is`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detections(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPageCount_RejectsGarbage(t *testing.T) {
	if _, err := PageCount([]byte("definitely not a pdf")); err == nil {
		t.Error("expected an error for non-pdf bytes")
	}
}

func TestPopplerRasterizer_RejectsGarbage(t *testing.T) {
	r := NewPopplerRasterizer("")
	if _, err := r.Rasterize(context.Background(), []byte("%PDF-broken")); err == nil {
		t.Error("expected an error for a malformed pdf")
	}
}

func TestPageFiles_SortsNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.jpg", "page-02.jpg", "page-01.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	files, err := pageFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, f := range files {
		got = append(got, filepath.Base(f))
	}
	if strings.Join(got, ",") != "page-01.jpg,page-02.jpg,page-10.jpg" {
		t.Errorf("got %v", got)
	}
}
