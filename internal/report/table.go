package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/paveg/cltv/internal/cltv"
	"github.com/shopspring/decimal"
)

// money renders an amount with two decimals, rounding half away from zero
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// WriteCustomerTable writes scored customers as aligned columns
func WriteCustomerTable(w io.Writer, customers []cltv.CustomerValue) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CustomerID\tInvoices\tRecency\tTotalPurchase\tAvgOrderValue\tCLTV\t")
	for _, c := range customers {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n",
			c.CustomerID,
			c.InvoiceCount,
			strconv.Itoa(c.RecencyDays)+"d",
			money(c.TotalPurchase),
			money(c.AvgOrderValue),
			money(c.CLTV),
		)
	}
	return tw.Flush()
}
