package matcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/enrichqueue"
	"github.com/merchantiq/catalog-service/internal/metrics"
	"github.com/merchantiq/catalog-service/internal/pkg/cuid2"
)

const (
	// DefaultBatchSize is how many unlinked supplier products are pulled per pass
	DefaultBatchSize = 500
	// DefaultFuzzyThreshold is the minimum name similarity for a fuzzy link
	DefaultFuzzyThreshold = 0.8
	// matchWorkers bounds concurrent per-product matching within a batch
	matchWorkers = 8
)

// MatchInput configures a matching pass over one user's supplier products
type MatchInput struct {
	UserID         string
	SupplierID     string  // Empty means all suppliers for the user
	BatchSize      int     // Defaults to DefaultBatchSize
	FuzzyThreshold float64 // Defaults to DefaultFuzzyThreshold
}

// MatchResult tracks the outcome of a matching pass
type MatchResult struct {
	Processed     int
	ExactMatches  int
	FuzzyMatches  int
	Unmatched     int
	AlreadyLinked int
	Enqueued      int
}

// candidate is an in-memory catalog analysis prepared for matching
type candidate struct {
	id        int64
	ean       string
	reference string
	title     string // Normalized
}

// candidateIndex holds one user's analyses keyed for tier-1 lookup
type candidateIndex struct {
	byEAN       map[string]int64
	byReference map[string]int64
	all         []candidate
}

// MatchSupplierProducts links unlinked supplier products to catalog
// analyses for one user. Tier 1 links on exact EAN or reference,
// tier 2 falls back to fuzzy name similarity above the threshold.
// Tier 2 ties resolve to the lowest analysis ID so repeat passes over
// the same data produce the same links. Each new link also enqueues
// an enrichment entry.
func MatchSupplierProducts(ctx context.Context, db *pgxpool.Pool, input MatchInput) (*MatchResult, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if input.BatchSize <= 0 {
		input.BatchSize = DefaultBatchSize
	}
	if input.FuzzyThreshold <= 0 {
		input.FuzzyThreshold = DefaultFuzzyThreshold
	}

	index, err := loadCandidates(ctx, db, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	log.Debug().
		Str("user_id", input.UserID).
		Int("candidates", len(index.all)).
		Msg("matching pass started")

	result := &MatchResult{}
	lastID := ""

	for {
		products, err := loadUnlinkedBatch(ctx, db, input, lastID)
		if err != nil {
			return nil, fmt.Errorf("load supplier products: %w", err)
		}
		if len(products) == 0 {
			break
		}
		lastID = products[len(products)-1].ID

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(matchWorkers)

		for _, product := range products {
			product := product
			g.Go(func() error {
				outcome, err := matchOne(gctx, db, index, input, product)
				if err != nil {
					return err
				}
				mu.Lock()
				result.Processed++
				switch outcome.method {
				case database.MatchMethodExact:
					result.ExactMatches++
					metrics.MatchesLinked.WithLabelValues(database.MatchMethodExact).Inc()
				case database.MatchMethodFuzzy:
					result.FuzzyMatches++
					metrics.MatchesLinked.WithLabelValues(database.MatchMethodFuzzy).Inc()
				default:
					if outcome.alreadyLinked {
						result.AlreadyLinked++
					} else {
						result.Unmatched++
						metrics.MatchesMissed.Inc()
					}
				}
				if outcome.enqueued {
					result.Enqueued++
				}
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return result, err
		}

		if len(products) < input.BatchSize {
			break
		}
	}

	log.Info().
		Str("user_id", input.UserID).
		Int("processed", result.Processed).
		Int("exact", result.ExactMatches).
		Int("fuzzy", result.FuzzyMatches).
		Int("unmatched", result.Unmatched).
		Msg("matching pass completed")

	return result, nil
}

type matchOutcome struct {
	method        string
	alreadyLinked bool
	enqueued      bool
}

// matchOne links a single supplier product. The existing-link check runs
// first so reprocessed products never produce duplicate links.
func matchOne(ctx context.Context, db *pgxpool.Pool, index *candidateIndex, input MatchInput, product database.SupplierProduct) (matchOutcome, error) {
	var existing string
	err := db.QueryRow(ctx, `
		SELECT id FROM product_links WHERE supplier_product_id = $1
	`, product.ID).Scan(&existing)
	if err == nil {
		return matchOutcome{alreadyLinked: true}, nil
	}
	if err != pgx.ErrNoRows {
		return matchOutcome{}, fmt.Errorf("check existing link: %w", err)
	}

	analysisID, method, confidence := findMatch(index, input.FuzzyThreshold, product)
	if method == "" {
		return matchOutcome{}, nil
	}

	linkID := cuid2.GenerateLinkID()
	tag, err := db.Exec(ctx, `
		INSERT INTO product_links (id, supplier_product_id, analysis_id, user_id, match_method, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (supplier_product_id) DO NOTHING
	`, linkID, product.ID, analysisID, product.UserID, method, confidence)
	if err != nil {
		return matchOutcome{}, fmt.Errorf("create product link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the race to a concurrent pass
		return matchOutcome{alreadyLinked: true}, nil
	}

	enqueueRes, err := enrichqueue.Enqueue(ctx, db, enrichqueue.EnqueueInput{
		SupplierProductID: product.ID,
		UserID:            product.UserID,
		Priority:          database.QueuePriorityNormal,
	})
	if err != nil {
		// The link exists but the queue entry does not. Orphan repair
		// picks these up on the next coordinator pass.
		log.Warn().
			Err(err).
			Str("supplier_product_id", product.ID).
			Msg("link created but enrichment enqueue failed")
		return matchOutcome{method: method}, nil
	}

	return matchOutcome{method: method, enqueued: enqueueRes.Created}, nil
}

// findMatch runs the tier cascade for one product against the index
func findMatch(index *candidateIndex, threshold float64, product database.SupplierProduct) (int64, string, float64) {
	// Tier 1: exact identifier
	if product.EAN != nil && *product.EAN != "" {
		if id, ok := index.byEAN[*product.EAN]; ok {
			return id, database.MatchMethodExact, 1.0
		}
	}
	if product.Reference != nil && *product.Reference != "" {
		if id, ok := index.byReference[*product.Reference]; ok {
			return id, database.MatchMethodExact, 1.0
		}
	}

	// Tier 2: fuzzy name
	if product.Name == nil || *product.Name == "" {
		return 0, "", 0
	}
	name := NormalizeName(*product.Name)
	if name == "" {
		return 0, "", 0
	}

	var (
		bestID    int64
		bestScore float64
		found     bool
	)
	for _, c := range index.all {
		if c.title == "" {
			continue
		}
		score := NameSimilarity(name, c.title)
		if score <= threshold {
			continue
		}
		if !found || score > bestScore || (score == bestScore && c.id < bestID) {
			bestID = c.id
			bestScore = score
			found = true
		}
	}
	if !found {
		return 0, "", 0
	}
	return bestID, database.MatchMethodFuzzy, bestScore
}

// loadCandidates pulls the user's catalog analyses into memory. Exact
// indexes keep the lowest analysis ID when identifiers collide.
func loadCandidates(ctx context.Context, db *pgxpool.Pool, userID string) (*candidateIndex, error) {
	rows, err := db.Query(ctx, `
		SELECT id, ean, reference, title
		FROM product_analyses
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := &candidateIndex{
		byEAN:       make(map[string]int64),
		byReference: make(map[string]int64),
	}

	for rows.Next() {
		var (
			id        int64
			ean       *string
			reference *string
			title     *string
		)
		if err := rows.Scan(&id, &ean, &reference, &title); err != nil {
			return nil, err
		}

		c := candidate{id: id}
		if ean != nil {
			c.ean = *ean
			if _, seen := index.byEAN[c.ean]; !seen && c.ean != "" {
				index.byEAN[c.ean] = id
			}
		}
		if reference != nil {
			c.reference = *reference
			if _, seen := index.byReference[c.reference]; !seen && c.reference != "" {
				index.byReference[c.reference] = id
			}
		}
		if title != nil {
			c.title = NormalizeName(*title)
		}
		index.all = append(index.all, c)
	}

	return index, rows.Err()
}

// loadUnlinkedBatch pages through supplier products with no link yet,
// keyed by ID for stable iteration.
func loadUnlinkedBatch(ctx context.Context, db *pgxpool.Pool, input MatchInput, afterID string) ([]database.SupplierProduct, error) {
	query := `
		SELECT sp.id, sp.supplier_id, sp.user_id, sp.ean, sp.reference, sp.name
		FROM supplier_products sp
		WHERE sp.user_id = $1
		AND sp.id > $2
		AND ($3 = '' OR sp.supplier_id = $3)
		AND NOT EXISTS (
			SELECT 1 FROM product_links pl WHERE pl.supplier_product_id = sp.id
		)
		ORDER BY sp.id
		LIMIT $4
	`

	rows, err := db.Query(ctx, query, input.UserID, afterID, input.SupplierID, input.BatchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]database.SupplierProduct, 0, input.BatchSize)
	for rows.Next() {
		var p database.SupplierProduct
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.UserID, &p.EAN, &p.Reference, &p.Name); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}
