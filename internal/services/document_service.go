package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"permitbot/internal/models"
	"permitbot/internal/pdf"
	"permitbot/internal/utils"
)

// RenderedDocument is a permit on disk plus its public URL.
type RenderedDocument struct {
	Path string
	URL  string
}

// DocumentRenderer turns an issued ticket into its permit document and
// removes it once the ticket is revoked.
type DocumentRenderer interface {
	Render(t *models.Ticket) (*RenderedDocument, error)
	Discard(t *models.Ticket) error
}

type DocumentService struct {
	FilesRoot    string // cfg.Files.RootDir
	BaseURL      string
	ValidityDays int
	Entity       string
	PDFGen       pdf.Generator
}

func NewDocumentService(filesRoot, baseURL string, validityDays int, entity string, pdfGen pdf.Generator) *DocumentService {
	return &DocumentService{
		FilesRoot:    filesRoot,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ValidityDays: validityDays,
		Entity:       entity,
		PDFGen:       pdfGen,
	}
}

func (s *DocumentService) Render(t *models.Ticket) (*RenderedDocument, error) {
	if s.PDFGen == nil {
		return nil, errors.New("pdf generator not configured")
	}
	issued := t.CreatedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	f := t.Fields
	rel, err := s.PDFGen.GeneratePermit(pdf.PermitData{
		Folio:      t.ID,
		Marca:      f["marca"],
		Linea:      f["linea"],
		Anio:       f["anio"],
		Serie:      f["serie"],
		Motor:      f["motor"],
		Nombre:     f["nombre"],
		IssuedAt:   issued,
		ValidUntil: issued.AddDate(0, 0, s.ValidityDays),
		Filename:   s.fileName(t.ID, issued),
	})
	if err != nil {
		return nil, fmt.Errorf("render permit %s: %w", t.ID, err)
	}
	return &RenderedDocument{
		Path: filepath.Join(s.FilesRoot, filepath.FromSlash(strings.TrimPrefix(rel, "/"))),
		URL:  s.publicURL(rel),
	}, nil
}

func (s *DocumentService) fileName(id string, issued time.Time) string {
	return fmt.Sprintf("%s_%s_%d.pdf", utils.Slug(id), strings.ToLower(utils.Slug(s.Entity)), issued.Unix())
}

// publicURL maps "/x.pdf" to "<base>/files/x.pdf"; relative when no base URL is set.
func (s *DocumentService) publicURL(rel string) string {
	return s.BaseURL + "/files" + rel
}

// ResolveFileForHTTP turns a document URL of a ticket back into an absolute
// path under the files root.
func (s *DocumentService) ResolveFileForHTTP(t *models.Ticket) (absPath, fileName string, err error) {
	if t == nil || t.DocumentURL == "" {
		return "", "", errors.New("document not found")
	}
	idx := strings.LastIndex(t.DocumentURL, "/files/")
	if idx < 0 {
		return "", "", errors.New("document not found")
	}
	name := filepath.Base(t.DocumentURL[idx+len("/files/"):])
	abs := filepath.Join(s.FilesRoot, name)
	if _, err := os.Stat(abs); err != nil {
		return "", "", errors.New("file not found")
	}
	return abs, name, nil
}

// Discard deletes the permit file of t. A ticket without a document, or a
// file already gone, is not an error.
func (s *DocumentService) Discard(t *models.Ticket) error {
	abs, _, err := s.ResolveFileForHTTP(t)
	if err != nil {
		return nil
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove permit %s: %w", t.ID, err)
	}
	return nil
}
