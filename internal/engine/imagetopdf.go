package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/docmill/docmill/internal/logging"
)

// pageSizes in points, portrait.
var pageSizes = map[string]fpdf.SizeType{
	"A4":     {Wd: 595.28, Ht: 841.89},
	"letter": {Wd: 612, Ht: 792},
	"A5":     {Wd: 419.53, Ht: 595.28},
	"legal":  {Wd: 612, Ht: 1008},
}

// imagesToPDF places each image on its own page. An unreadable image gets
// an error placeholder page instead of aborting the batch.
func (e *Engine) imagesToPDF(ctx context.Context, inputs []Input, opts ImageOptions) (*Result, error) {
	size := pageSizes[opts.PageSize]
	if opts.Orientation == "landscape" {
		size.Wd, size.Ht = size.Ht, size.Wd
	}
	pageW, pageH := size.Wd, size.Ht

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           size,
	})
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	placed := 0
	for idx, in := range inputs {
		pdf.AddPage()

		img, err := loadImage(in.Path)
		if err != nil {
			logging.Logf("[ENGINE] image_to_pdf: unreadable image %s: %v", in.OriginalName, err)
			pdf.SetFont("Helvetica", "", 12)
			pdf.SetTextColor(0, 0, 0)
			pdf.Text(100, pageH/2, tr(fmt.Sprintf("Error loading image: %s", in.OriginalName)))
			continue
		}

		imgW, imgH := float64(img.width), float64(img.height)
		var x, y, w, h float64
		switch opts.Placement {
		case "full":
			x, y, w, h = 0, 0, pageW, pageH
		case "center":
			w, h = imgW, imgH
			x, y = (pageW-w)/2, (pageH-h)/2
		case "multiple":
			scale := minFloat(pageW/imgW, pageH/imgH) * 0.8
			w, h = imgW*scale, imgH*scale
			x, y = (pageW-w)/2, (pageH-h)/2
		default: // fit
			scale := minFloat(pageW*0.9/imgW, pageH*0.9/imgH)
			w, h = imgW*scale, imgH*scale
			x, y = (pageW-w)/2, (pageH-h)/2
		}

		name := fmt.Sprintf("img%d", idx)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: img.kind}, bytes.NewReader(img.data))
		pdf.ImageOptions(name, x, y, w, h, false, fpdf.ImageOptions{ImageType: img.kind}, 0, "")
		placed++

		if opts.AddPageNumbers {
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetTextColor(127, 127, 127)
			pdf.SetXY(pageW-150, pageH-38)
			pdf.CellFormat(100, 12, fmt.Sprintf("Page %d of %d", idx+1, len(inputs)), "", 0, "R", false, 0, "")
		}

		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(77, 77, 77)
		pdf.Text(50, pageH-30, tr(fmt.Sprintf("Image: %s", in.OriginalName)))
	}

	data, err := outputPDF(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	return &Result{
		Bytes:    data,
		Filename: fmt.Sprintf("images_collection_%s.pdf", shortID()),
		Meta: map[string]interface{}{
			"images": len(inputs),
			"placed": placed,
		},
	}, nil
}

type loadedImage struct {
	data   []byte
	kind   string // fpdf image type: JPG or PNG
	width  int
	height int
}

// loadImage reads an image and normalizes it into a format fpdf embeds
// directly. JPEG and PNG pass through untouched; BMP, TIFF, and WebP are
// re-encoded as PNG.
func loadImage(path string) (*loadedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image header: %w", err)
	}

	switch format {
	case "jpeg":
		return &loadedImage{data: data, kind: "JPG", width: cfg.Width, height: cfg.Height}, nil
	case "png":
		return &loadedImage{data: data, kind: "PNG", width: cfg.Width, height: cfg.Height}, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s image: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, fmt.Errorf("re-encoding %s image: %w", format, err)
	}
	return &loadedImage{data: buf.Bytes(), kind: "PNG", width: cfg.Width, height: cfg.Height}, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
