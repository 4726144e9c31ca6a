package enums

// StockAlertReason explains why an inventory.stock_alert was raised.
type StockAlertReason string

const (
	StockAlertReasonShortfall StockAlertReason = "shortfall"
	StockAlertReasonMissing   StockAlertReason = "missing_record"
	StockAlertReasonLowStock  StockAlertReason = "low_stock"
)

var validStockAlertReasons = []StockAlertReason{
	StockAlertReasonShortfall,
	StockAlertReasonMissing,
	StockAlertReasonLowStock,
}

func (r StockAlertReason) IsValid() bool {
	for _, candidate := range validStockAlertReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
