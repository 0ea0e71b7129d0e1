package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"dealdesk/internal/app"
	"dealdesk/internal/grpcserver"
	"dealdesk/internal/lineitems"
	"dealdesk/internal/metrics"
	"dealdesk/pkg/models"
)

var (
	outputFormat string
	grpcAddr     string
	grpcToken    string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [deal-id]",
	Short: "Print the line items of a deal",
	Long: `Fetches the line items associated with a deal, joins their products and
prints the result envelope.

Examples:
  dealdesk aggregate 1001
  dealdesk aggregate 1001 --format csv
  dealdesk aggregate 1001 --grpc localhost:9090 --token $TOKEN`,
	Args: cobra.ExactArgs(1),
	RunE: runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "output format: json or csv")
	aggregateCmd.Flags().StringVar(&grpcAddr, "grpc", "", "aggregate through a gRPC server at this address")
	aggregateCmd.Flags().StringVar(&grpcToken, "token", "", "bearer token for the gRPC server")
}

func runAggregate(cmd *cobra.Command, args []string) error {
	if outputFormat != "json" && outputFormat != "csv" {
		return fmt.Errorf("unknown format %q", outputFormat)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := aggregate(ctx, args[0])
	if err != nil {
		return err
	}

	if err := writeResult(cmd.OutOrStdout(), res, outputFormat); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("aggregation failed (%s): %s", res.Kind(), res.Message)
	}
	return nil
}

func aggregate(ctx context.Context, dealID string) (models.AggregationResult, error) {
	if grpcAddr != "" {
		c, err := grpcserver.Dial(grpcAddr)
		if err != nil {
			return models.AggregationResult{}, err
		}
		defer c.Close()
		c.Token = grpcToken
		return c.Aggregate(ctx, dealID)
	}

	policy, err := lineitems.ParsePolicy(cfg.Aggregator.DealFetchPolicy)
	if err != nil {
		return models.AggregationResult{}, err
	}
	return app.NewAggregator(cfg, logger, metrics.NewRegistry(), policy).Aggregate(ctx, dealID), nil
}

func writeResult(w io.Writer, res models.AggregationResult, format string) error {
	if format == "csv" && res.Success {
		return writeCSV(w, res.Data)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

var csvHeader = []string{"id", "product_id", "product_name", "quantity", "price", "amount", "sku", "currency", "ticket_id"}

func writeCSV(w io.Writer, items []models.LineItemView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, it := range items {
		row := []string{
			it.ID,
			it.ProductID,
			it.ProductName,
			strconv.FormatInt(it.Quantity, 10),
			strconv.FormatFloat(it.Price, 'f', -1, 64),
			strconv.FormatFloat(it.Amount, 'f', -1, 64),
			it.SKU,
			it.Currency,
			it.TicketID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
