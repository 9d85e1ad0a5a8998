package models

type OrderStatusResult struct {
	OrderID string `json:"orderId"`
	StoreID string `json:"storeId"`
	Status  string `json:"status"`
}

type KeyResult struct {
	Address    string `json:"address"`
	Thumbprint string `json:"thumbprint"`
	Created    bool   `json:"created"`
}

type PaginatedOrders struct {
	Orders []Order `json:"orders"`
	Total  int64   `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}
