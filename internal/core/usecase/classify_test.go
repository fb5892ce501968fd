package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/velstad/vault-pipeline/internal/core/domain"
)

func TestClassifyDocumentPersistsAndChainsTagEmbedding(t *testing.T) {
	docs := &docStoreFake{updateRef: domain.DocumentRef{ID: "doc-42"}}
	queue := &queueFake{}
	ai := &aiFake{docCls: domain.Classification{
		Title:    "Invoice - Acme Corp",
		Summary:  "Invoice for consulting services",
		Date:     "2026-08-12",
		Language: "sv",
		Tags:     []string{"Invoice", "Consulting"},
	}}
	uc := NewClassifyDocumentUseCase(docs, ai, queue, discardLogger())

	err := uc.Process(context.Background(), domain.ClassifyDocumentPayload{
		Content:  "Faktura from Acme Corp ...",
		FileName: "team1/invoices/acme.pdf",
		TeamID:   "team1",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(docs.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(docs.updates))
	}
	upd := docs.updates[0]
	if upd.Status != domain.StatusClassified {
		t.Fatalf("status = %q, want classified while tags are pending", upd.Status)
	}
	if got := strings.Join(upd.PathTokens, "/"); got != "team1/invoices/acme.pdf" {
		t.Fatalf("path tokens = %q", got)
	}
	if upd.Title == nil || *upd.Title != "Invoice - Acme Corp" {
		t.Fatalf("title = %v", upd.Title)
	}
	if upd.Language == nil || *upd.Language != "swedish" {
		t.Fatalf("language = %v, want mapped swedish", upd.Language)
	}

	embedJobs := queue.byName(domain.JobEmbedDocumentTags)
	if len(embedJobs) != 1 {
		t.Fatalf("embed jobs = %d, want 1", len(embedJobs))
	}
	payload := embedJobs[0].payload.(domain.EmbedTagsPayload)
	if payload.DocumentID != "doc-42" || payload.TeamID != "team1" {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.Tags) != 2 {
		t.Fatalf("tags = %v", payload.Tags)
	}
}

func TestClassifyDocumentWithoutTagsCompletesImmediately(t *testing.T) {
	docs := &docStoreFake{}
	queue := &queueFake{}
	ai := &aiFake{docCls: domain.Classification{Title: "Some note", Language: "en"}}
	uc := NewClassifyDocumentUseCase(docs, ai, queue, discardLogger())

	err := uc.Process(context.Background(), domain.ClassifyDocumentPayload{
		Content:  "a short note",
		FileName: "team1/note.txt",
		TeamID:   "team1",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if docs.updates[0].Status != domain.StatusCompleted {
		t.Fatalf("status = %q, want completed when no tags", docs.updates[0].Status)
	}
	if len(queue.byName(domain.JobEmbedDocumentTags)) != 0 {
		t.Fatal("no tags means no embed job")
	}
}

func TestClassifyDocumentMissingRecordIsFatal(t *testing.T) {
	docs := &docStoreFake{updateErr: domain.WrapError(domain.ErrDocumentNotFound, "update", errors.New("no rows"))}
	uc := NewClassifyDocumentUseCase(docs, &aiFake{docCls: domain.Classification{Title: "t"}}, &queueFake{}, discardLogger())

	err := uc.Process(context.Background(), domain.ClassifyDocumentPayload{
		Content:  "text",
		FileName: "team1/gone.pdf",
		TeamID:   "team1",
	})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestClassifyDocumentFallbackTitleFromKeyword(t *testing.T) {
	docs := &docStoreFake{}
	ai := &aiFake{docCls: domain.Classification{
		Summary:  "Monthly invoice from Acme",
		Language: "en",
	}}
	uc := NewClassifyDocumentUseCase(docs, ai, &queueFake{}, discardLogger())

	err := uc.Process(context.Background(), domain.ClassifyDocumentPayload{
		Content:  "some body text",
		FileName: "team1/scan-0042.pdf",
		TeamID:   "team1",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	title := *docs.updates[0].Title
	if !strings.HasPrefix(title, "Invoice - ") {
		t.Fatalf("title = %q, want Invoice prefix from keyword match", title)
	}
}

func TestClassifyImageDownloadsAndPersistsExtractedText(t *testing.T) {
	docs := &docStoreFake{updateRef: domain.DocumentRef{ID: "doc-7"}}
	blobs := &blobFake{blobs: map[string][]byte{"team1/receipt.jpg": []byte("jpeg-bytes")}}
	queue := &queueFake{}
	ai := &aiFake{imgCls: domain.Classification{
		Title:    "Receipt - Coffee Shop",
		Summary:  "Receipt for two coffees",
		Content:  "COFFEE SHOP\n2x latte 9.00",
		Language: "en",
		Tags:     []string{"Receipt"},
	}}
	uc := NewClassifyImageUseCase(docs, blobs, ai, queue, discardLogger())

	err := uc.Process(context.Background(), domain.ClassifyImagePayload{
		FileName: "team1/receipt.jpg",
		TeamID:   "team1",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if ai.imgCalls != 1 || string(ai.imgBytes) != "jpeg-bytes" {
		t.Fatalf("classifier saw %d calls, bytes %q", ai.imgCalls, ai.imgBytes)
	}
	upd := docs.updates[0]
	if upd.Content == nil || !strings.Contains(*upd.Content, "COFFEE SHOP") {
		t.Fatalf("content = %v, want extracted image text persisted", upd.Content)
	}
	if upd.Status != domain.StatusClassified {
		t.Fatalf("status = %q", upd.Status)
	}
	if len(queue.byName(domain.JobEmbedDocumentTags)) != 1 {
		t.Fatal("image with tags must chain embed job")
	}
}

func TestClassifyImageDownloadFailurePropagates(t *testing.T) {
	docs := &docStoreFake{}
	blobs := &blobFake{downloadErr: errors.New("blob missing")}
	uc := NewClassifyImageUseCase(docs, blobs, &aiFake{}, &queueFake{}, discardLogger())

	err := uc.Process(context.Background(), domain.ClassifyImagePayload{
		FileName: "team1/gone.jpg",
		TeamID:   "team1",
	})
	if err == nil {
		t.Fatal("expected download error to propagate")
	}
	if len(docs.updates) != 0 {
		t.Fatal("no update should happen on download failure")
	}
}

func TestClassifyRerunProducesSameUpdate(t *testing.T) {
	docs := &docStoreFake{}
	ai := &aiFake{docCls: domain.Classification{Title: "Contract - Lease", Language: "en"}}
	uc := NewClassifyDocumentUseCase(docs, ai, &queueFake{}, discardLogger())

	payload := domain.ClassifyDocumentPayload{
		Content:  "lease agreement terms",
		FileName: "team1/lease.pdf",
		TeamID:   "team1",
	}
	if err := uc.Process(context.Background(), payload); err != nil {
		t.Fatalf("first run error = %v", err)
	}
	if err := uc.Process(context.Background(), payload); err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if len(docs.updates) != 2 {
		t.Fatalf("updates = %d", len(docs.updates))
	}
	first, second := docs.updates[0], docs.updates[1]
	if *first.Title != *second.Title || first.Status != second.Status {
		t.Fatalf("re-run diverged: %+v vs %+v", first, second)
	}
}
