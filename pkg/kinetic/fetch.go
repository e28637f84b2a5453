package kinetic

import "context"

// ContentFetcher is the upstream content store boundary.
//
// Implementations own transport and query concerns; callers treat every
// method as fallible and potentially slow.
type ContentFetcher interface {
	// FetchDocumentsByIDs returns full documents for the given store IDs.
	// Unknown IDs are omitted from the result, not reported as errors.
	FetchDocumentsByIDs(ctx context.Context, ids []string) ([]ContentDocument, error)
	// FetchDocumentsBySlugs returns full documents for the given slugs.
	// Unknown slugs are omitted from the result, not reported as errors.
	FetchDocumentsBySlugs(ctx context.Context, slugs []string) ([]ContentDocument, error)
	// FetchTagsBySlugs returns taxonomy entries for the given slugs.
	FetchTagsBySlugs(ctx context.Context, slugs []string) ([]TaxonomyEntry, error)
	// FetchCreatorsByIDs returns creator profiles for the given IDs.
	FetchCreatorsByIDs(ctx context.Context, ids []string) ([]CreatorProfile, error)
	// FetchBootstrap assembles the full warm-start payload.
	FetchBootstrap(ctx context.Context) (UniversalBootstrap, error)
}
