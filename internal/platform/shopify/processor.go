package shopify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pulseboard/internal/models"
	"pulseboard/internal/storage"
)

// Processor turns a storefront bundle into generic metric records.
type Processor struct {
	store  storage.Store
	logger *logrus.Entry
}

func NewProcessor(store storage.Store, logger *logrus.Logger) *Processor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Processor{
		store:  store,
		logger: logger.WithField("platform", Platform),
	}
}

// salesTotals is the explicit aggregate handed to the derived-metric step,
// so ratios never depend on re-reading emitted display strings.
type salesTotals struct {
	revenue    decimal.Decimal
	orderCount int
}

// Transformed is the output of one transform pass.
type Transformed struct {
	Sections models.Sections
	sales    salesTotals
}

func (p *Processor) Extract(ctx context.Context, client *Client, start, end time.Time) (*Bundle, error) {
	return client.CollectMetrics(ctx, start, end)
}

func (p *Processor) Transform(bundle *Bundle) *Transformed {
	t := &Transformed{Sections: models.Sections{}}
	t.Sections["sales"] = p.transformSales(bundle, &t.sales)
	t.Sections["inventory"] = p.transformInventory(bundle)
	t.Sections["products"] = p.transformProducts(bundle)
	t.Sections["customers"] = p.transformCustomers(bundle)
	p.calculateDerived(t)
	return t
}

func (p *Processor) transformSales(bundle *Bundle, totals *salesTotals) []models.Record {
	var metrics []models.Record

	orders := bundle.Orders
	if len(orders) == 0 {
		return metrics
	}

	now := time.Now()
	revenue := decimal.Zero
	for _, order := range orders {
		price, err := decimal.NewFromString(order.TotalPrice)
		if err != nil {
			p.logger.WithField("order_id", order.ID).Warn("Unparseable order total, counted as zero")
			continue
		}
		revenue = revenue.Add(price)
	}
	totals.revenue = revenue
	totals.orderCount = len(orders)

	totalRevenue, _ := revenue.Float64()
	metrics = append(metrics, models.TimestampedMetric{
		Type:         "main_metric",
		Name:         "Total Revenue",
		Value:        totalRevenue,
		DisplayValue: models.Money(totalRevenue),
		Color:        "success",
		Date:         now,
	})

	metrics = append(metrics, models.TimestampedMetric{
		Type:         "main_metric",
		Name:         "Order Count",
		Value:        float64(len(orders)),
		DisplayValue: fmt.Sprintf("%d", len(orders)),
		Color:        "primary",
		Date:         now,
	})

	avgOrderValue := totalRevenue / float64(len(orders))
	metrics = append(metrics, models.TimestampedMetric{
		Type:         "main_metric",
		Name:         "Average Order Value",
		Value:        avgOrderValue,
		DisplayValue: models.Money(avgOrderValue),
		Color:        "info",
		Date:         now,
	})

	// Per-financial-status counts, in first-seen order.
	statusCounts := map[string]int{}
	var statusOrder []string
	for _, order := range orders {
		status := order.FinancialStatus
		if status == "" {
			status = "unknown"
		}
		if _, seen := statusCounts[status]; !seen {
			statusOrder = append(statusOrder, status)
		}
		statusCounts[status]++
	}
	for _, status := range statusOrder {
		metrics = append(metrics, models.TimestampedMetric{
			Type:         "order_status",
			Name:         fmt.Sprintf("%s Orders", capitalize(status)),
			Value:        float64(statusCounts[status]),
			DisplayValue: fmt.Sprintf("%d", statusCounts[status]),
			Color:        "secondary",
			Date:         now,
		})
	}

	return metrics
}

func (p *Processor) transformInventory(bundle *Bundle) []models.Record {
	var metrics []models.Record

	if len(bundle.Products) == 0 {
		return metrics
	}

	totalInventory, outOfStock, lowStock := 0, 0, 0
	for _, product := range bundle.Products {
		for _, variant := range product.Variants {
			totalInventory += variant.InventoryQuantity
			if variant.InventoryQuantity <= 0 {
				outOfStock++
			} else if variant.InventoryQuantity < 5 {
				lowStock++
			}
		}
	}

	metrics = append(metrics,
		models.NamedMetric{
			Type:         "main_metric",
			Name:         "Total Inventory",
			Value:        float64(totalInventory),
			DisplayValue: fmt.Sprintf("%d", totalInventory),
			Color:        "primary",
		},
		models.NamedMetric{
			Type:         "main_metric",
			Name:         "Out of Stock Items",
			Value:        float64(outOfStock),
			DisplayValue: fmt.Sprintf("%d", outOfStock),
			Color:        "danger",
		},
		models.NamedMetric{
			Type:         "main_metric",
			Name:         "Low Stock Items",
			Value:        float64(lowStock),
			DisplayValue: fmt.Sprintf("%d", lowStock),
			Color:        "warning",
		},
	)

	return metrics
}

func (p *Processor) transformProducts(bundle *Bundle) []models.Record {
	var metrics []models.Record

	products := bundle.Products
	if len(products) == 0 {
		return metrics
	}

	activeProducts, variantCount := 0, 0
	for _, product := range products {
		if product.Status == "active" {
			activeProducts++
		}
		variantCount += len(product.Variants)
	}

	metrics = append(metrics,
		models.NamedMetric{
			Type:         "catalog",
			Name:         "Total Products",
			Value:        float64(len(products)),
			DisplayValue: fmt.Sprintf("%d", len(products)),
			Color:        "primary",
			Icon:         "box",
		},
		models.NamedMetric{
			Type:         "catalog",
			Name:         "Active Products",
			Value:        float64(activeProducts),
			DisplayValue: fmt.Sprintf("%d", activeProducts),
			Color:        "success",
			Icon:         "check",
		},
		models.NamedMetric{
			Type:         "catalog",
			Name:         "Total Variants",
			Value:        float64(variantCount),
			DisplayValue: fmt.Sprintf("%d", variantCount),
			Color:        "info",
			Icon:         "tags",
		},
	)

	// Top 10 products by stock, stable descending so input order breaks ties.
	top := make([]Product, len(products))
	copy(top, products)
	sort.SliceStable(top, func(i, j int) bool {
		return stockOf(top[i]) > stockOf(top[j])
	})
	if len(top) > 10 {
		top = top[:10]
	}
	for i, product := range top {
		if len(product.Variants) == 0 {
			continue
		}
		variant := product.Variants[0]
		metrics = append(metrics, models.KeyedMetric{
			Category:     "top_products",
			SubCategory:  product.Title,
			Value:        fmt.Sprintf("%d", stockOf(product)),
			Unit:         "in stock",
			TrendValue:   variant.Price,
			TrendUnit:    "price",
			Icon:         "box",
			Color:        "primary",
			DisplayOrder: 10 + i,
			Status:       product.Status,
		})
	}

	return metrics
}

func (p *Processor) transformCustomers(bundle *Bundle) []models.Record {
	var metrics []models.Record

	customers := bundle.Customers
	if len(customers) == 0 {
		return metrics
	}

	metrics = append(metrics, models.NamedMetric{
		Type:         "top_metrics",
		Name:         "Total Customers",
		Value:        float64(len(customers)),
		DisplayValue: fmt.Sprintf("%d", len(customers)),
		Color:        "primary",
		Icon:         "users",
	})

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	newCustomers, withOrders, totalOrders := 0, 0, 0
	for _, c := range customers {
		if created, err := time.Parse(time.RFC3339, c.CreatedAt); err == nil && created.After(thirtyDaysAgo) {
			newCustomers++
		}
		if c.OrdersCount > 0 {
			withOrders++
		}
		totalOrders += c.OrdersCount
	}

	metrics = append(metrics,
		models.NamedMetric{
			Type:         "top_metrics",
			Name:         "New Customers (30d)",
			Value:        float64(newCustomers),
			DisplayValue: fmt.Sprintf("%d", newCustomers),
			Color:        "success",
			Icon:         "user-plus",
		},
		models.NamedMetric{
			Type:         "top_metrics",
			Name:         "Customers with Orders",
			Value:        float64(withOrders),
			DisplayValue: fmt.Sprintf("%d", withOrders),
			Color:        "info",
			Icon:         "shopping-cart",
		},
	)

	avgOrders := float64(totalOrders) / float64(len(customers))
	metrics = append(metrics, models.NamedMetric{
		Type:         "top_metrics",
		Name:         "Avg Orders per Customer",
		Value:        avgOrders,
		DisplayValue: models.Rate2(avgOrders),
		Color:        "warning",
		Icon:         "chart-line",
	})

	return metrics
}

// calculateDerived appends ratio metrics computed from the transform-time
// aggregates. It only ever adds records.
func (p *Processor) calculateDerived(t *Transformed) {
	if t.sales.orderCount == 0 {
		return
	}
	revenue, _ := t.sales.revenue.Float64()
	perOrder := revenue / float64(t.sales.orderCount)
	t.Sections["sales"] = append(t.Sections["sales"], models.TimestampedMetric{
		Type:         "derived_metric",
		Name:         "Revenue per Order",
		Value:        perOrder,
		DisplayValue: models.Money(perOrder),
		Color:        "info",
		Date:         time.Now(),
	})
}

// Load writes every record in one session; any failure rolls back the whole
// batch.
func (p *Processor) Load(ctx context.Context, t *Transformed) error {
	session, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	for _, rec := range t.Sections.Records() {
		if err := session.Add(rec); err != nil {
			session.Rollback()
			return fmt.Errorf("load: %w", err)
		}
	}
	if err := session.Commit(); err != nil {
		session.Rollback()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Process runs extract -> transform -> load and logs the failing phase.
func (p *Processor) Process(ctx context.Context, client *Client, start, end time.Time) error {
	p.logger.Info("Starting ETL process")

	bundle, err := p.Extract(ctx, client, start, end)
	if err != nil {
		p.logger.WithError(err).WithField("phase", "extract").Error("ETL process failed")
		return err
	}

	transformed := p.Transform(bundle)

	if err := p.Load(ctx, transformed); err != nil {
		p.logger.WithError(err).WithField("phase", "load").Error("ETL process failed")
		return err
	}

	p.logger.WithField("records", transformed.Sections.Count()).Info("ETL process completed")
	return nil
}

func stockOf(p Product) int {
	total := 0
	for _, v := range p.Variants {
		total += v.InventoryQuantity
	}
	return total
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
