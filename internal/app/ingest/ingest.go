// Package ingest turns operator context items into an ordered bundle of
// prompt segments for the generative backend.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

const (
	defaultConcurrency = 4
	bundleHeader       = "BUSINESS CONTEXT:\n"
)

type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentBinary
)

type Segment struct {
	Kind     SegmentKind
	Text     string
	Data     []byte
	MimeType string
}

// Bundle is the ordered context submitted for synthesis.
type Bundle struct {
	Segments []Segment
	SeedURLs []string
	Contacts domain.ContactInfo
	Rules    []string
}

// Parts converts the bundle into generator prompt parts.
func (b Bundle) Parts() []domain.Part {
	parts := make([]domain.Part, 0, len(b.Segments))
	for _, s := range b.Segments {
		if s.Kind == SegmentBinary {
			parts = append(parts, domain.BinaryPart(s.Data, s.MimeType))
			continue
		}
		parts = append(parts, domain.TextPart(s.Text))
	}
	return parts
}

// Empty reports whether nothing usable was ingested.
func (b Bundle) Empty() bool { return len(b.Segments) == 0 }

// Warning is a non-fatal per-item ingestion failure.
type Warning struct {
	ItemID string
	Name   string
	Reason string
}

func (w Warning) Error() string {
	return fmt.Sprintf("context item %s (%s) skipped: %s", w.ItemID, w.Name, w.Reason)
}

// BlobLoader rehydrates offloaded file payloads.
type BlobLoader interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Fetcher optionally enriches URL items with page text.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

type Ingester struct {
	blobs       BlobLoader
	fetcher     Fetcher
	concurrency int
}

type Option func(*Ingester)

func WithBlobLoader(b BlobLoader) Option { return func(in *Ingester) { in.blobs = b } }

func WithFetcher(f Fetcher) Option { return func(in *Ingester) { in.fetcher = f } }

func WithConcurrency(n int) Option {
	return func(in *Ingester) {
		if n > 0 {
			in.concurrency = n
		}
	}
}

func New(opts ...Option) *Ingester {
	in := &Ingester{concurrency: defaultConcurrency}
	for _, o := range opts {
		o(in)
	}
	return in
}

// resolved is the per-item outcome of the concurrent read step.
type resolved struct {
	data     []byte
	mimeType string
	pageText string
	warning  *Warning
}

// Ingest never fails as a whole: unreadable items are dropped and reported.
func (in *Ingester) Ingest(ctx context.Context, items []domain.ContextItem) (Bundle, []Warning) {
	log := observability.LoggerFromContext(ctx).With("items", len(items))
	items = activeItems(items)

	results := make([]resolved, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for i := range items {
		switch items[i].Kind {
		case domain.ContextFile:
			g.Go(func() error {
				results[i] = in.readFile(gctx, items[i])
				return nil
			})
		case domain.ContextURL:
			if in.fetcher == nil {
				continue
			}
			g.Go(func() error {
				results[i] = in.fetchPage(gctx, items[i])
				return nil
			})
		}
	}
	_ = g.Wait()

	var (
		b        Bundle
		warnings []Warning
		buf      strings.Builder
	)
	write := func(line string) {
		if buf.Len() == 0 {
			buf.WriteString(bundleHeader)
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush := func() {
		if buf.Len() > 0 {
			b.Segments = append(b.Segments, Segment{Kind: SegmentText, Text: buf.String()})
			buf.Reset()
		}
	}

	for i, it := range items {
		r := results[i]
		if r.warning != nil {
			warnings = append(warnings, *r.warning)
		}
		switch it.Kind {
		case domain.ContextText:
			content := strings.TrimSpace(it.Content)
			if content == "" {
				continue
			}
			tag, value, ok := domain.ParseTag(it)
			switch {
			case ok && tag.IsContact():
				write(fmt.Sprintf("[CONTACT CHANNEL - %s]: %s", contactLabel(tag), value))
			case ok && tag == domain.TagBusinessRule:
				b.Rules = append(b.Rules, value)
				write("[BUSINESS RULE - HIGH PRIORITY]: " + value)
			default:
				write("[INTERNAL INFO]: " + content)
			}
		case domain.ContextURL:
			u := strings.TrimSpace(it.Content)
			if u == "" {
				continue
			}
			b.SeedURLs = append(b.SeedURLs, u)
			write("[SEED URL]: " + u)
			if r.pageText != "" {
				write("[PAGE CONTENT " + u + "]:\n" + r.pageText)
			}
		case domain.ContextFile:
			if r.warning != nil {
				continue
			}
			flush()
			b.Segments = append(b.Segments, Segment{Kind: SegmentBinary, Data: r.data, MimeType: r.mimeType})
		default:
			warnings = append(warnings, Warning{ItemID: it.ID, Name: it.Content, Reason: "unknown item type " + string(it.Kind)})
		}
	}
	flush()
	b.Contacts = domain.ContactsFromItems(items)

	for _, w := range warnings {
		log.Warn("ingestion warning", "item_id", w.ItemID, "reason", w.Reason)
	}
	log.Info("context ingested", "segments", len(b.Segments), "warnings", len(warnings))
	return b, warnings
}

func (in *Ingester) readFile(ctx context.Context, it domain.ContextItem) resolved {
	data := it.FileData
	if len(data) == 0 && it.BlobRef != "" && in.blobs != nil {
		loaded, err := in.blobs.Get(ctx, it.BlobRef)
		if err != nil {
			return resolved{warning: &Warning{ItemID: it.ID, Name: it.FileName, Reason: "blob unavailable: " + err.Error()}}
		}
		data = loaded
	}
	if len(data) == 0 {
		return resolved{warning: &Warning{ItemID: it.ID, Name: it.FileName, Reason: "no file data"}}
	}
	mimeType := strings.TrimSpace(it.MimeType)
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return resolved{data: data, mimeType: mimeType}
}

func (in *Ingester) fetchPage(ctx context.Context, it domain.ContextItem) resolved {
	text, err := in.fetcher.FetchText(ctx, strings.TrimSpace(it.Content))
	if err != nil {
		return resolved{warning: &Warning{ItemID: it.ID, Name: it.Content, Reason: "fetch failed: " + err.Error()}}
	}
	return resolved{pageText: text}
}

// activeItems drops superseded singleton-tag items: the last one per tag wins.
func activeItems(items []domain.ContextItem) []domain.ContextItem {
	last := make(map[domain.ContextTag]int)
	for i, it := range items {
		if tag, _, ok := domain.ParseTag(it); ok && tag.Singleton() {
			last[tag] = i
		}
	}
	out := make([]domain.ContextItem, 0, len(items))
	for i, it := range items {
		if tag, _, ok := domain.ParseTag(it); ok && tag.Singleton() && last[tag] != i {
			continue
		}
		out = append(out, it)
	}
	return out
}

func contactLabel(tag domain.ContextTag) string {
	switch tag {
	case domain.TagSupport:
		return "support/warranty"
	case domain.TagSales:
		return "sales"
	case domain.TagTechnical:
		return "technical"
	default:
		return "other"
	}
}
