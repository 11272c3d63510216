package shopify

import "time"

// Wire shapes for the storefront Admin API. Only the fields the processors
// read are declared; the rest of each payload is ignored on decode.

type Shop struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Domain   string `json:"domain"`
	Currency string `json:"currency"`
}

type Order struct {
	ID              int64  `json:"id"`
	TotalPrice      string `json:"total_price"`
	FinancialStatus string `json:"financial_status"`
	CreatedAt       string `json:"created_at"`
	Currency        string `json:"currency"`
}

type Variant struct {
	ID                int64  `json:"id"`
	Price             string `json:"price"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	ProductType string    `json:"product_type"`
	Status      string    `json:"status"`
	Variants    []Variant `json:"variants"`
}

type Customer struct {
	ID          int64  `json:"id"`
	CreatedAt   string `json:"created_at"`
	OrdersCount int    `json:"orders_count"`
}

type InventoryLevel struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       int   `json:"available"`
}

// Bundle is one collection cycle's raw data. Ephemeral: it exists only
// within a single ETL run and is never persisted as-is.
type Bundle struct {
	Shop        Shop
	Orders      []Order
	Products    []Product
	Customers   []Customer
	Inventory   []InventoryLevel
	CollectedAt time.Time
	Start, End  time.Time
}
