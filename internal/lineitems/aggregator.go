package lineitems

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dealdesk/internal/crm"
	"dealdesk/internal/metrics"
	"dealdesk/pkg/models"
)

// Policy decides how a failing identifier source is treated.
type Policy string

const (
	// PolicyStrict fails the call when the deal record cannot be fetched and
	// tolerates a failing association lookup.
	PolicyStrict Policy = "strict"
	// PolicyLenient proceeds with whichever source answered and fails only
	// when both did not.
	PolicyLenient Policy = "lenient"
)

// ParsePolicy reads a configured policy name; empty means PolicyStrict.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyStrict, PolicyLenient:
		return p, nil
	case "":
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown deal fetch policy %q", s)
	}
}

// Credentials supplies the CRM access token.
type Credentials interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a token read once from configuration.
type StaticToken string

func (t StaticToken) AccessToken(context.Context) (string, error) { return string(t), nil }

// ClientFactory builds a CRM client for one invocation.
type ClientFactory func(token string) crm.Client

// Options tune an Aggregator. Zero values fall back to PolicyStrict, no
// extra timeout, a no-op logger and no metrics.
type Options struct {
	Policy  Policy
	Timeout time.Duration // 0 means only the caller's context applies
	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// Aggregator resolves, fetches and joins the line items of a deal. It holds
// no per-request state and is safe for concurrent use.
type Aggregator struct {
	connect ClientFactory
	creds   Credentials
	opts    Options
}

// New returns an Aggregator that builds a fresh CRM client per call.
func New(connect ClientFactory, creds Credentials, opts Options) *Aggregator {
	if opts.Policy == "" {
		opts.Policy = PolicyStrict
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Aggregator{connect: connect, creds: creds, opts: opts}
}

// run is the state of one invocation.
type run struct {
	dealID       string
	log          *zap.Logger
	placeholders int
}

// Aggregate returns the normalized line items of dealID. It never panics and
// always returns a well-formed envelope; failures are described by
// ErrorDetails.Kind.
func (a *Aggregator) Aggregate(ctx context.Context, dealID string) (res models.AggregationResult) {
	start := time.Now()
	r := &run{dealID: strings.TrimSpace(dealID)}
	r.log = a.opts.Logger.With(zap.String("deal_id", r.dealID))

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("line item aggregation panicked", zap.Any("panic", p))
			res = models.Failure(models.KindUnexpected,
				"An unexpected error occurred while loading line items",
				&models.ErrorDetails{Name: "panic", Cause: fmt.Sprint(p)})
		}
		outcome := "success"
		if !res.Success {
			outcome = string(res.Kind())
		}
		a.opts.Metrics.ObserveAggregation(outcome, time.Since(start), len(res.Data)-r.placeholders, r.placeholders)
	}()

	if r.dealID == "" {
		return models.Failure(models.KindInputValidation, "Deal ID is required", nil)
	}

	token, err := a.creds.AccessToken(ctx)
	if err != nil || strings.TrimSpace(token) == "" {
		details := &models.ErrorDetails{Name: "missing_access_token"}
		if err != nil {
			details.Cause = err.Error()
		}
		r.log.Error("crm access token unavailable", zap.Error(err))
		return models.Failure(models.KindConfiguration, "CRM access token is not configured", details)
	}

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}
	client := a.connect(token)

	ids, failed := a.resolveIDs(ctx, client, r)
	if failed != nil {
		return *failed
	}
	if len(ids) == 0 {
		r.log.Info("deal has no line items")
		return models.AggregationResult{
			Success: true,
			Data:    []models.LineItemView{},
			Message: "No line items found for this deal",
			Meta:    &models.Meta{},
		}
	}

	raws, err := client.BatchRead(ctx, crm.ObjectLineItems, ids, lineItemProperties)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		r.log.Error("line item batch read failed", zap.Strings("ids", ids), zap.Error(err))
		details := describe(err)
		details.AttemptedIDs = ids
		return models.Failure(models.KindBatchFetch, "Failed to fetch line item details: "+err.Error(), details)
	}

	records := make([]LineItemRecord, len(raws))
	parseErrs := make([]error, len(raws))
	valid := make([]LineItemRecord, 0, len(raws))
	for i, raw := range raws {
		records[i], parseErrs[i] = ParseLineItem(raw)
		if parseErrs[i] == nil {
			valid = append(valid, records[i])
		}
	}

	products, failed := a.fetchProducts(ctx, client, r, DistinctProductIDs(valid))
	if failed != nil {
		return *failed
	}

	views := make([]models.LineItemView, len(records))
	for i, rec := range records {
		if parseErrs[i] != nil {
			r.log.Warn("line item record malformed, using placeholder",
				zap.Int("position", i+1), zap.String("line_item_id", rec.ID), zap.Error(parseErrs[i]))
			r.placeholders++
			views[i] = Placeholder(rec.ID, i+1)
			continue
		}
		views[i] = ToView(rec, products, i+1)
	}

	r.log.Info("line items aggregated",
		zap.Int("total_found", len(ids)),
		zap.Int("total_formatted", len(views)),
		zap.Int("products_found", len(products)),
		zap.Duration("took", time.Since(start)))

	return models.AggregationResult{
		Success: true,
		Data:    views,
		Message: fmt.Sprintf("Found %d line items", len(views)),
		Meta: &models.Meta{
			TotalFound:     len(ids),
			TotalFormatted: len(views),
			ProductsFound:  len(products),
		},
	}
}

// resolveIDs queries both identifier sources concurrently and merges them
// according to the configured policy.
func (a *Aggregator) resolveIDs(ctx context.Context, client crm.Client, r *run) ([]string, *models.AggregationResult) {
	var (
		deal     *crm.Deal
		dealErr  error
		assocIDs []string
		assocErr error
	)

	// both lookups must run to completion independently, so neither returns an error to the group
	var g errgroup.Group
	g.Go(func() error {
		deal, dealErr = client.GetDeal(ctx, r.dealID, dealProperties, []string{crm.ObjectLineItems})
		return nil
	})
	g.Go(func() error {
		assocIDs, assocErr = client.GetAssociations(ctx, r.dealID, crm.ObjectLineItems)
		return nil
	})
	_ = g.Wait()

	if (dealErr != nil || assocErr != nil) && ctx.Err() != nil {
		res := cancelled(ctx)
		return nil, &res
	}

	if assocErr != nil {
		r.log.Warn("association lookup failed, continuing without it", zap.Error(assocErr))
		assocIDs = nil
	}
	if dealErr != nil {
		if a.opts.Policy == PolicyStrict || assocErr != nil {
			r.log.Error("deal fetch failed", zap.Error(dealErr))
			res := models.Failure(models.KindDealFetch, "Failed to fetch deal: "+dealErr.Error(), describe(dealErr))
			return nil, &res
		}
		r.log.Warn("deal fetch failed, continuing with associations only", zap.Error(dealErr))
	}

	var embedded []string
	if deal != nil {
		embedded = deal.Associations[crm.ObjectLineItems]
	}
	return MergeIDs(embedded, assocIDs), nil
}

// fetchProducts returns products keyed by id. A failed lookup yields an
// empty map; only cancellation aborts.
func (a *Aggregator) fetchProducts(ctx context.Context, client crm.Client, r *run, ids []string) (map[string]ProductRecord, *models.AggregationResult) {
	products := make(map[string]ProductRecord, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	raws, err := client.BatchRead(ctx, crm.ObjectProducts, ids, productProperties)
	if err != nil {
		if ctx.Err() != nil {
			res := cancelled(ctx)
			return nil, &res
		}
		r.log.Warn("product batch read failed, rendering without products", zap.Strings("product_ids", ids), zap.Error(err))
		return products, nil
	}

	for _, raw := range raws {
		p, err := ParseProduct(raw)
		if err != nil || p.ID == "" {
			r.log.Warn("skipping malformed product record", zap.String("product_id", p.ID), zap.Error(err))
			continue
		}
		products[p.ID] = p
	}
	return products, nil
}

func describe(err error) *models.ErrorDetails {
	f := crm.Describe(err)
	return &models.ErrorDetails{
		Name:      f.Name,
		Status:    f.Status,
		Retryable: f.Retryable,
		Cause:     err.Error(),
	}
}

func cancelled(ctx context.Context) models.AggregationResult {
	return models.Failure(models.KindCancelled, "Line item loading was cancelled", &models.ErrorDetails{
		Name:      "cancelled",
		Retryable: true,
		Cause:     ctx.Err().Error(),
	})
}
