package shopify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"pulseboard/internal/credentials"
	"pulseboard/internal/httpx"
	"pulseboard/internal/platform"
)

const Platform = "shopify"

// pageSize is the storefront API's hard cap per page.
const pageSize = 250

// pagePause keeps pagination inside the 2-requests/second budget.
const pagePause = 500 * time.Millisecond

// Client talks to the storefront Admin API with token-in-header auth and
// since_id cursor pagination.
type Client struct {
	api    *httpx.Client
	logger *logrus.Entry

	shopName string

	// pause is replaced in tests to skip the inter-page delay.
	pause func()
}

func NewClient(creds credentials.Credentials, httpCfg httpx.Config, logger *logrus.Logger) (*Client, error) {
	if err := platform.RequireKeys(Platform, creds, "shop_name", "access_token"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	baseURL := fmt.Sprintf("https://%s.myshopify.com/admin/api/2023-10", creds["shop_name"])
	headers := map[string]string{
		"X-Shopify-Access-Token": creds["access_token"],
		"Content-Type":           "application/json",
	}

	return &Client{
		api:      httpx.New(Platform, baseURL, headers, httpCfg, logger),
		logger:   logger.WithField("platform", Platform),
		shopName: creds["shop_name"],
		pause:    func() { time.Sleep(pagePause) },
	}, nil
}

// API exposes the underlying wrapper for tests that need to redirect the
// base URL or disable sleeps.
func (c *Client) API() *httpx.Client { return c.api }

// SetBaseURL repoints the client, used by tests against httptest servers.
func (c *Client) SetBaseURL(base string, httpCfg httpx.Config, logger *logrus.Logger) {
	c.api = httpx.New(Platform, base, map[string]string{
		"X-Shopify-Access-Token": "test",
	}, httpCfg, logger)
}

// SetPause replaces the inter-page delay.
func (c *Client) SetPause(fn func()) { c.pause = fn }

func (c *Client) Name() string { return Platform }

// ValidateCredentials performs one cheap authenticated call. It never
// returns an error; any failure reads as invalid.
func (c *Client) ValidateCredentials(ctx context.Context) bool {
	shop, err := c.ShopInfo(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Credential validation failed")
		return false
	}
	return shop.ID != 0
}

func (c *Client) AccountInfo(ctx context.Context) (map[string]any, error) {
	return c.api.DoMap(ctx, httpx.Request{Endpoint: "shop.json"})
}

func (c *Client) ShopInfo(ctx context.Context) (Shop, error) {
	var resp struct {
		Shop Shop `json:"shop"`
	}
	if err := c.api.Do(ctx, httpx.Request{Endpoint: "shop.json"}, &resp); err != nil {
		return Shop{}, err
	}
	return resp.Shop, nil
}

// Orders fetches one page of orders. sinceID of 0 starts from the beginning;
// createdAtMin filters by creation-time floor when non-empty.
func (c *Client) Orders(ctx context.Context, status string, limit int, sinceID int64, createdAtMin string) ([]Order, error) {
	params := url.Values{}
	params.Set("status", status)
	params.Set("limit", strconv.Itoa(limit))
	if sinceID > 0 {
		params.Set("since_id", strconv.FormatInt(sinceID, 10))
	}
	if createdAtMin != "" {
		params.Set("created_at_min", createdAtMin)
	}

	var resp struct {
		Orders []Order `json:"orders"`
	}
	if err := c.api.Do(ctx, httpx.Request{Endpoint: "orders.json", Params: params}, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// AllOrders pages through every order created at or after since.
func (c *Client) AllOrders(ctx context.Context, status string, since time.Time) ([]Order, error) {
	var all []Order
	var sinceID int64
	createdAtMin := since.Format(time.RFC3339)

	for {
		orders, err := c.Orders(ctx, status, pageSize, sinceID, createdAtMin)
		if err != nil {
			return nil, err
		}
		if len(orders) == 0 {
			break
		}
		all = append(all, orders...)
		sinceID = orders[len(orders)-1].ID
		c.logger.WithField("count", len(all)).Debug("Retrieved orders page")
		c.pause()
	}
	return all, nil
}

func (c *Client) Products(ctx context.Context, limit int, sinceID int64) ([]Product, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if sinceID > 0 {
		params.Set("since_id", strconv.FormatInt(sinceID, 10))
	}

	var resp struct {
		Products []Product `json:"products"`
	}
	if err := c.api.Do(ctx, httpx.Request{Endpoint: "products.json", Params: params}, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

func (c *Client) AllProducts(ctx context.Context) ([]Product, error) {
	var all []Product
	var sinceID int64

	for {
		products, err := c.Products(ctx, pageSize, sinceID)
		if err != nil {
			return nil, err
		}
		if len(products) == 0 {
			break
		}
		all = append(all, products...)
		sinceID = products[len(products)-1].ID
		c.logger.WithField("count", len(all)).Debug("Retrieved products page")
		c.pause()
	}
	return all, nil
}

func (c *Client) Customers(ctx context.Context, limit int, sinceID int64) ([]Customer, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if sinceID > 0 {
		params.Set("since_id", strconv.FormatInt(sinceID, 10))
	}

	var resp struct {
		Customers []Customer `json:"customers"`
	}
	if err := c.api.Do(ctx, httpx.Request{Endpoint: "customers.json", Params: params}, &resp); err != nil {
		return nil, err
	}
	return resp.Customers, nil
}

func (c *Client) AllCustomers(ctx context.Context) ([]Customer, error) {
	var all []Customer
	var sinceID int64

	for {
		customers, err := c.Customers(ctx, pageSize, sinceID)
		if err != nil {
			return nil, err
		}
		if len(customers) == 0 {
			break
		}
		all = append(all, customers...)
		sinceID = customers[len(customers)-1].ID
		c.logger.WithField("count", len(all)).Debug("Retrieved customers page")
		c.pause()
	}
	return all, nil
}

func (c *Client) InventoryLevels(ctx context.Context, locationID int64) ([]InventoryLevel, error) {
	params := url.Values{}
	if locationID > 0 {
		params.Set("location_ids", strconv.FormatInt(locationID, 10))
	}

	var resp struct {
		InventoryLevels []InventoryLevel `json:"inventory_levels"`
	}
	if err := c.api.Do(ctx, httpx.Request{Endpoint: "inventory_levels.json", Params: params}, &resp); err != nil {
		return nil, err
	}
	return resp.InventoryLevels, nil
}

// CollectMetrics runs the full storefront collection: shop info, orders in
// the window, catalog, customers, inventory. A failed shop lookup aborts
// with an empty bundle; any other sub-call failure yields an empty section
// and collection continues.
func (c *Client) CollectMetrics(ctx context.Context, start, end time.Time) (*Bundle, error) {
	start, end = platform.Window(start, end)
	c.logger.WithFields(logrus.Fields{
		"start": start.Format("2006-01-02"),
		"end":   end.Format("2006-01-02"),
	}).Info("Collecting storefront metrics")

	shop, err := c.ShopInfo(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Shop lookup failed, aborting collection")
		return &Bundle{CollectedAt: time.Now(), Start: start, End: end}, nil
	}

	bundle := &Bundle{
		Shop:        shop,
		CollectedAt: time.Now(),
		Start:       start,
		End:         end,
	}

	if bundle.Orders, err = c.AllOrders(ctx, "any", start); err != nil {
		c.logger.WithError(err).Warn("Order collection failed, continuing with empty section")
		bundle.Orders = nil
	}
	if bundle.Products, err = c.AllProducts(ctx); err != nil {
		c.logger.WithError(err).Warn("Product collection failed, continuing with empty section")
		bundle.Products = nil
	}
	if bundle.Customers, err = c.AllCustomers(ctx); err != nil {
		c.logger.WithError(err).Warn("Customer collection failed, continuing with empty section")
		bundle.Customers = nil
	}
	if bundle.Inventory, err = c.InventoryLevels(ctx, 0); err != nil {
		c.logger.WithError(err).Warn("Inventory collection failed, continuing with empty section")
		bundle.Inventory = nil
	}

	return bundle, nil
}
