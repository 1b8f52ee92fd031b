package server

import (
	"bytes"
	"image"
	"image/color/palette"
	"image/gif"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testGIF(t *testing.T, w, h, frames int) []byte {
	t.Helper()
	out := &gif.GIF{Config: image.Config{Width: w, Height: h}}
	for i := 0; i < frames; i++ {
		img := image.NewPaletted(image.Rect(0, 0, w, h), palette.Plan9)
		for p := range img.Pix {
			img.Pix[p] = uint8(i + 1)
		}
		out.Image = append(out.Image, img)
		out.Delay = append(out.Delay, 10)
		out.Disposal = append(out.Disposal, gif.DisposalNone)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		t.Fatalf("building test gif: %v", err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, image []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "in.gif")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatalf("writing form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(nil, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestClip(t *testing.T) {
	srv := newTestServer(t)

	body, ctype := multipartBody(t, testGIF(t, 40, 30, 3), map[string]string{
		"polygon": `[{"x":2,"y":2},{"x":38,"y":2},{"x":20,"y":28}]`,
	})
	resp, err := http.Post(srv.URL+"/v1/clip", ctype, body)
	if err != nil {
		t.Fatalf("POST /v1/clip: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, msg)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/gif" {
		t.Errorf("Content-Type = %q, want image/gif", got)
	}
	if got := resp.Header.Get("X-Export-Status"); got != "accepted" {
		t.Errorf("X-Export-Status = %q, want accepted", got)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	out, err := gif.DecodeAll(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("response is not a valid gif: %v", err)
	}
	if len(out.Image) != 3 {
		t.Errorf("response has %d frames, want 3", len(out.Image))
	}
}

func TestClipWithResizeAndBudget(t *testing.T) {
	srv := newTestServer(t)

	body, ctype := multipartBody(t, testGIF(t, 64, 64, 2), map[string]string{
		"polygon": `[{"x":0,"y":0},{"x":64,"y":0},{"x":64,"y":64},{"x":0,"y":64}]`,
		"width":   "48",
		"height":  "48",
		"budget":  "1000000",
	})
	resp, err := http.Post(srv.URL+"/v1/clip", ctype, body)
	if err != nil {
		t.Fatalf("POST /v1/clip: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, msg)
	}
	if got := resp.Header.Get("X-Export-Attempts"); got != "1" {
		t.Errorf("X-Export-Attempts = %q, want 1", got)
	}

	out, err := gif.DecodeAll(resp.Body)
	if err != nil {
		t.Fatalf("response is not a valid gif: %v", err)
	}
	if out.Config.Width != 48 || out.Config.Height != 48 {
		t.Errorf("canvas = %dx%d, want 48x48", out.Config.Width, out.Config.Height)
	}
}

func TestClipBadRequests(t *testing.T) {
	srv := newTestServer(t)

	testCases := []struct {
		name   string
		image  []byte
		fields map[string]string
	}{
		{
			name:   "missing image",
			image:  nil,
			fields: map[string]string{"polygon": `[{"x":0,"y":0},{"x":1,"y":0},{"x":0,"y":1}]`},
		},
		{
			name:   "not a gif",
			image:  []byte("PNG rather than GIF"),
			fields: map[string]string{"polygon": `[{"x":0,"y":0},{"x":1,"y":0},{"x":0,"y":1}]`},
		},
		{
			name:   "malformed polygon json",
			image:  nil, // set below
			fields: map[string]string{"polygon": `{{`},
		},
		{
			name:   "degenerate polygon",
			image:  nil, // set below
			fields: map[string]string{"polygon": `[{"x":0,"y":0},{"x":5,"y":5}]`},
		},
		{
			name:  "bad budget",
			image: nil, // set below
			fields: map[string]string{
				"polygon": `[{"x":0,"y":0},{"x":1,"y":0},{"x":0,"y":1}]`,
				"budget":  "lots",
			},
		},
	}

	valid := testGIF(t, 16, 16, 1)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := tc.image
			if img == nil && tc.name != "missing image" {
				img = valid
			}
			body, ctype := multipartBody(t, img, tc.fields)
			resp, err := http.Post(srv.URL+"/v1/clip", ctype, body)
			if err != nil {
				t.Fatalf("POST /v1/clip: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestPosterEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body, ctype := multipartBody(t, testGIF(t, 60, 40, 2), map[string]string{
		"polygon": `[{"x":5,"y":5},{"x":55,"y":5},{"x":30,"y":35}]`,
		"width":   "30",
	})
	resp, err := http.Post(srv.URL+"/v1/poster", ctype, body)
	if err != nil {
		t.Fatalf("POST /v1/poster: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, msg)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("response is not a valid png: %v", err)
	}
	if b := img.Bounds(); b.Dx() > 30 || b.Dy() > 30 {
		t.Errorf("poster = %dx%d, want bounded to 30", b.Dx(), b.Dy())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "listen: \":9090\"\nmax_upload_bytes: 1024\ndefault_size_budget: 500000\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want :9090", cfg.Listen)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Errorf("MaxUploadBytes = %d, want 1024", cfg.MaxUploadBytes)
	}
	if cfg.DefaultSizeBudget != 500000 {
		t.Errorf("DefaultSizeBudget = %d, want 500000", cfg.DefaultSizeBudget)
	}

	if _, err := LoadConfig(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("LoadConfig(absent) succeeded, want error")
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.defaults()
	if cfg.Listen == "" {
		t.Error("defaults() left Listen empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		t.Error("defaults() left MaxUploadBytes unset")
	}
}
