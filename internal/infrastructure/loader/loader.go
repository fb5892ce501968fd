// Package loader extracts plain text from blobs of known mimetypes. It is
// the pipeline's boundary to format parsers; a corrupt or unsupported blob
// surfaces as an error for the job queue's retry policy to judge.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"
	"github.com/xuri/excelize/v2"

	"github.com/velstad/vault-pipeline/internal/core/domain"
	"github.com/velstad/vault-pipeline/internal/infrastructure/resilience"
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeODT  = "application/vnd.oasis.opendocument.text"
	mimeRTF  = "application/rtf"
)

type Loader struct {
	budgets resilience.Budgets
	logger  *slog.Logger
}

func New(budgets resilience.Budgets, logger *slog.Logger) *Loader {
	return &Loader{budgets: budgets, logger: logger}
}

// Load extracts text from the resolved file, bounded by the document-parse
// budget so a pathological blob cannot hang the worker.
func (l *Loader) Load(ctx context.Context, file domain.ResolvedFile) (string, error) {
	text, err := resilience.WithTimeout(ctx, l.budgets.DocumentParse,
		fmt.Sprintf("document parsing timed out after %s", l.budgets.DocumentParse),
		func(context.Context) (string, error) {
			return l.extract(file)
		})
	if err != nil {
		return "", err
	}
	l.logger.Debug("extracted document text", "mimetype", file.Mime, "chars", len(text))
	return text, nil
}

func (l *Loader) extract(file domain.ResolvedFile) (string, error) {
	mime := strings.ToLower(strings.TrimSpace(file.Mime))
	switch {
	case file.Kind == domain.KindPDF || mime == domain.MimePDF:
		return extractPDF(file.Data)
	case mime == mimeXLSX:
		return extractXLSX(file.Data)
	case mime == mimeDOCX || mime == mimeODT || mime == mimeRTF:
		return extractViaCat(file.Data, mime)
	case strings.HasPrefix(mime, "text/") || mime == "application/json":
		return extractPlain(file.Data)
	default:
		return "", domain.WrapError(domain.ErrUnsupportedFile, "load document", fmt.Errorf("no extractor for %s", file.Mime))
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(text), nil
}

func extractXLSX(data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer book.Close()

	var sb strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// extractViaCat hands the blob to the cat extractor, which dispatches on
// file extension, hence the typed temp file.
func extractViaCat(data []byte, mime string) (string, error) {
	ext := map[string]string{
		mimeDOCX: ".docx",
		mimeODT:  ".odt",
		mimeRTF:  ".rtf",
	}[mime]

	tmp, err := os.CreateTemp("", "vault-doc-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	text, err := cat.File(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filepath.Ext(tmp.Name()), err)
	}
	return text, nil
}

func extractPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.WrapError(domain.ErrInvalidInput, "load document", errors.New("declared text blob is not valid utf-8"))
	}
	return string(data), nil
}
