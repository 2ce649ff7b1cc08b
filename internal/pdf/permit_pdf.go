package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// Generator renders a permit and returns its path relative to the files root.
type Generator interface {
	GeneratePermit(data PermitData) (string, error)
}

// DocumentGenerator draws permits on US Letter in points. Coordinates are
// text baselines measured from the top-left corner.
type DocumentGenerator struct {
	RootDir  string // e.g. "./files"
	FontPath string // optional TTF; core Helvetica when empty
	Entity   string
}

type PermitData struct {
	Folio      string
	Marca      string
	Linea      string
	Anio       string
	Serie      string
	Motor      string
	Nombre     string
	IssuedAt   time.Time
	ValidUntil time.Time
	Filename   string // bare file name; derived from the folio when empty
}

type placement struct {
	x, y, size float64
	r, g, b    int
}

var layout = map[string]placement{
	"folio":    {87, 130, 14, 255, 0, 0},
	"fecha":    {130, 145, 12, 0, 0, 0},
	"marca":    {87, 290, 11, 0, 0, 0},
	"serie":    {375, 290, 11, 0, 0, 0},
	"linea":    {87, 307, 11, 0, 0, 0},
	"motor":    {375, 307, 11, 0, 0, 0},
	"anio":     {87, 323, 11, 0, 0, 0},
	"vigencia": {375, 323, 11, 0, 0, 0},
	"nombre":   {375, 340, 11, 0, 0, 0},
}

var labels = []struct {
	key, text string
}{
	{"marca", "MARCA"},
	{"serie", "SERIE"},
	{"linea", "LÍNEA"},
	{"motor", "MOTOR"},
	{"anio", "AÑO"},
	{"vigencia", "VIGENCIA"},
	{"nombre", "NOMBRE"},
}

const (
	qrSide    = 1.6 * 28.35
	qrTop     = 680.17
	qrShift   = 19.0
	labelLift = 10.0
)

var meses = [...]string{"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
	"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE"}

func NewDocumentGenerator(rootDir, fontPath, entity string) *DocumentGenerator {
	if entity == "" {
		entity = "CDMX"
	}
	return &DocumentGenerator{
		RootDir:  filepath.Clean(rootDir),
		FontPath: fontPath,
		Entity:   entity,
	}
}

// FechaVisual formats a date as "02 DE SEPTIEMBRE DEL 2025".
func FechaVisual(t time.Time) string {
	return fmt.Sprintf("%02d DE %s DEL %d", t.Day(), meses[t.Month()-1], t.Year())
}

// QRText is the summary encoded in the permit QR.
func QRText(d PermitData, entity string) string {
	return strings.Join([]string{
		"Folio: " + d.Folio,
		"Marca: " + d.Marca,
		"Línea: " + d.Linea,
		"Año: " + d.Anio,
		"Serie: " + d.Serie,
		"Motor: " + d.Motor,
		"Nombre: " + d.Nombre,
		"SEMOVI" + entity + " DIGITAL",
	}, "\n")
}

func (g *DocumentGenerator) GeneratePermit(data PermitData) (string, error) {
	if strings.TrimSpace(data.Folio) == "" {
		return "", fmt.Errorf("generate permit: empty folio")
	}
	filename := data.Filename
	if filename == "" {
		filename = data.Folio + "_" + strings.ToLower(g.Entity) + ".pdf"
	}
	absPath, err := g.ensureTarget(filename)
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Permiso "+data.Folio, true)
	pdf.SetAuthor("SEMOVI "+g.Entity+" DIGITAL", true)
	pdf.SetAutoPageBreak(false, 0)
	font, tr := g.setupFont(pdf)
	pdf.AddPage()

	g.header(pdf, font, tr)

	values := map[string]string{
		"folio":    data.Folio,
		"fecha":    FechaVisual(data.IssuedAt),
		"marca":    data.Marca,
		"serie":    data.Serie,
		"linea":    data.Linea,
		"motor":    data.Motor,
		"anio":     data.Anio,
		"vigencia": data.ValidUntil.Format("02/01/2006"),
		"nombre":   data.Nombre,
	}
	pdf.SetFont(font, "", 7)
	pdf.SetTextColor(110, 110, 110)
	for _, l := range labels {
		p := layout[l.key]
		pdf.Text(p.x, p.y-labelLift, tr(l.text))
	}
	for key, p := range layout {
		pdf.SetFont(font, "", p.size)
		pdf.SetTextColor(p.r, p.g, p.b)
		pdf.Text(p.x, p.y, tr(values[key]))
	}

	if err := g.stampQR(pdf, QRText(data, g.Entity)); err != nil {
		return "", err
	}

	if err := pdf.OutputFileAndClose(absPath); err != nil {
		return "", fmt.Errorf("write permit %s: %w", data.Folio, err)
	}
	return "/" + filepath.ToSlash(filepath.Base(absPath)), nil
}

func (g *DocumentGenerator) header(pdf *gofpdf.Fpdf, font string, tr func(string) string) {
	w, _ := pdf.GetPageSize()
	pdf.SetFont(font, "B", 16)
	pdf.SetTextColor(0, 0, 0)
	title := tr("PERMISO DIGITAL PARA CIRCULAR SIN PLACAS")
	pdf.Text((w-pdf.GetStringWidth(title))/2, 70, title)
	pdf.SetFont(font, "", 10)
	sub := tr("SEMOVI " + g.Entity + " DIGITAL")
	pdf.Text((w-pdf.GetStringWidth(sub))/2, 88, sub)

	pdf.SetFont(font, "", 8)
	pdf.Text(87, 118, "FOLIO")
	pdf.Text(87, 145, tr("EXPEDICIÓN"))
	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(160, 160, 160)
	pdf.Line(60, 265, w-60, 265)
	pdf.Line(60, 355, w-60, 355)
}

func (g *DocumentGenerator) stampQR(pdf *gofpdf.Fpdf, text string) error {
	png, err := qrcode.Encode(text, qrcode.Low, 256)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	w, _ := pdf.GetPageSize()
	x := w/2 - qrSide/2 - qrShift
	pdf.ImageOptions("qr", x, qrTop, qrSide, qrSide, false, opts, 0, "")
	return pdf.Error()
}

// setupFont registers the TTF when configured. The core font needs the
// returned translator for accented text.
func (g *DocumentGenerator) setupFont(pdf *gofpdf.Fpdf) (string, func(string) string) {
	if g.FontPath != "" {
		if _, err := os.Stat(g.FontPath); err == nil {
			pdf.AddUTF8Font("PermitSans", "", g.FontPath)
			pdf.AddUTF8Font("PermitSans", "B", g.FontPath)
			return "PermitSans", func(s string) string { return s }
		}
	}
	return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
}

func (g *DocumentGenerator) ensureTarget(filename string) (string, error) {
	if err := os.MkdirAll(g.RootDir, 0o755); err != nil {
		return "", fmt.Errorf("create files dir: %w", err)
	}
	filename = filepath.Base(filename)
	return filepath.Join(g.RootDir, filename), nil
}
