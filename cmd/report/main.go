// Command report prints a business report from a running API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"salesdata/internal/client"
	"salesdata/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	url := flag.String("url", "", "API base URL (default from config)")
	period := flag.String("period", "month", "trend period: day, week, month, quarter or day_of_week")
	top := flag.Int("top", 10, "number of top products")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(1)
	}
	if *url == "" {
		*url = cfg.Server.URL
	}

	c := client.New(*url)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := writeReport(ctx, os.Stdout, c, *period, *top); err != nil {
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(1)
	}
}

func writeReport(ctx context.Context, w io.Writer, c *client.Client, period string, n int) error {
	manifest, err := c.Manifest(ctx)
	if err != nil {
		return err
	}
	metrics, err := c.Metrics(ctx, nil)
	if err != nil {
		return err
	}
	products, err := c.Top(ctx, "total_amount", "product_id", n)
	if err != nil {
		return err
	}
	trends, err := c.Trends(ctx, period)
	if err != nil {
		return err
	}
	segments, err := c.Summary(ctx, "customer_segment")
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "SALES REPORT  run %s  seed %d  as of %s\n\n", manifest.RunID, manifest.Seed, manifest.AsOf)

	fmt.Fprintln(w, "Key metrics")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  Total revenue\t$%.2f\n", metrics.TotalRevenue)
	fmt.Fprintf(tw, "  Total profit\t$%.2f\n", metrics.TotalProfit)
	fmt.Fprintf(tw, "  Orders\t%d\n", metrics.TotalOrders)
	fmt.Fprintf(tw, "  Customers\t%d\n", metrics.TotalCustomers)
	fmt.Fprintf(tw, "  Units sold\t%d\n", metrics.TotalProductsSold)
	fmt.Fprintf(tw, "  Average order value\t$%.2f\n", metrics.AvgOrderValue)
	fmt.Fprintf(tw, "  Average profit margin\t%.2f%%\n", metrics.AvgProfitMargin)
	fmt.Fprintf(tw, "  Period\t%s to %s\n", metrics.FirstOrder, metrics.LastOrder)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTop %d products by revenue\n", n)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tProduct\tRevenue\tProfit\tUnits")
	for i, p := range products {
		fmt.Fprintf(tw, "  %d\t%s\t$%.2f\t$%.2f\t%d\n", i+1, p.Name, p.TotalAmount, p.Profit, p.Quantity)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nRevenue by customer segment")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  Segment\tRevenue\tAvg line\tLines")
	for _, s := range segments {
		st := s.Stats["total_amount"]
		fmt.Fprintf(tw, "  %s\t$%.2f\t$%.2f\t%d\n", s.Key, st.Sum, st.Mean, st.Count)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTrend by %s\n", period)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  Period\tRevenue\tProfit\tOrders")
	for _, p := range trends {
		fmt.Fprintf(tw, "  %s\t$%.2f\t$%.2f\t%d\n", p.Period, p.TotalAmount, p.Profit, p.Orders)
	}
	return tw.Flush()
}
