// Package extract turns fetched pages into structured catalog fields.
package extract

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

// PlaceholderDescription replaces generator calls when a page carries no
// description at all.
const PlaceholderDescription = "Description not available"

// Extractor isolates the relevant HTML fragment, then delegates field
// extraction, summarization and embedding to the injected collaborators.
type Extractor struct {
	generator catalog.Generator
	embedder  catalog.Embedder
	validate  *validator.Validate
	dim       int
}

// New builds an Extractor. dim is the embedding dimensionality requested
// from the embedder.
func New(generator catalog.Generator, embedder catalog.Embedder, dim int) *Extractor {
	return &Extractor{
		generator: generator,
		embedder:  embedder,
		validate:  validator.New(),
		dim:       dim,
	}
}

// Extract parses one audiobook detail page into the fixed field schema.
func (e *Extractor) Extract(ctx context.Context, page catalog.Page) (catalog.ExtractedFields, error) {
	fragment, err := IsolatePost(string(page.Body))
	if err != nil {
		return catalog.ExtractedFields{}, fmt.Errorf("isolate post: %w", err)
	}
	var fields catalog.ExtractedFields
	if err := e.generator.GenerateStructured(ctx, parsePrompt(fragment), audiobookSchema(), &fields); err != nil {
		return catalog.ExtractedFields{}, fmt.Errorf("generate structured fields: %w", err)
	}
	if err := e.validate.Struct(fields); err != nil {
		return catalog.ExtractedFields{}, fmt.Errorf("validate extracted fields: %w", err)
	}
	return fields, nil
}

// ExtractListing parses a listing page into discovered submissions.
// baseURL is handed to the generator so relative links come back qualified.
func (e *Extractor) ExtractListing(ctx context.Context, page catalog.Page, baseURL string) (catalog.Listing, error) {
	fragment, err := IsolateListingTable(string(page.Body))
	if err != nil {
		return catalog.Listing{}, fmt.Errorf("isolate listing table: %w", err)
	}
	var listing catalog.Listing
	if err := e.generator.GenerateStructured(ctx, parsePrompt(fragment), listingSchema(baseURL), &listing); err != nil {
		return catalog.Listing{}, fmt.Errorf("generate listing: %w", err)
	}
	return listing, nil
}

// Summarize produces the very short description. An empty description
// short-circuits to the placeholder without calling the generator.
func (e *Extractor) Summarize(ctx context.Context, description string) (string, error) {
	if description == "" {
		return PlaceholderDescription, nil
	}
	text, err := e.generator.GenerateText(ctx, summaryPrompt(description))
	if err != nil {
		return "", fmt.Errorf("generate short description: %w", err)
	}
	return text, nil
}

// Embeddable rewrites the description for vector search. An empty
// description short-circuits to the placeholder without calling the
// generator.
func (e *Extractor) Embeddable(ctx context.Context, description string) (string, error) {
	if description == "" {
		return PlaceholderDescription, nil
	}
	text, err := e.generator.GenerateText(ctx, embeddablePrompt(description))
	if err != nil {
		return "", fmt.Errorf("generate embeddable description: %w", err)
	}
	return text, nil
}

// Embed produces the normalized document embedding for the given text.
func (e *Extractor) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.Embed(ctx, text, catalog.TaskRetrievalDocument, e.dim)
	if err != nil {
		return nil, fmt.Errorf("embed description: %w", err)
	}
	return vec, nil
}
