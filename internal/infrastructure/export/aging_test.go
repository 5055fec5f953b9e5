package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/registers/account"
)

func sampleReport() account.AgingReport {
	buckets := func(cur, d30 string) map[string]types.Money {
		m := map[string]types.Money{}
		for _, b := range account.Buckets {
			m[b] = types.Zero()
		}
		m[account.BucketCurrent] = types.MustMoney(cur)
		m[account.Bucket1To30] = types.MustMoney(d30)
		return m
	}
	return account.AgingReport{
		Type: account.Receivable,
		AsOf: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		Rows: []account.AgingRow{
			{PartyID: id.New(), PartyCode: "C-01", PartyName: "Harbour Foods",
				Buckets: buckets("1000", "250.5"), Total: types.MustMoney("1250.5")},
		},
		Totals:      buckets("1000", "250.5"),
		Total:       types.MustMoney("1250.5"),
		Overdue:     types.MustMoney("250.5"),
		OverdueRate: types.MustMoney("20.04"),
	}
}

func raw(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return v
}

func TestAgingWorkbook_Layout(t *testing.T) {
	f, err := AgingWorkbook(sampleReport())
	require.NoError(t, err)
	defer f.Close()

	sheet := "Receivable aging"
	assert.Equal(t, []string{sheet}, f.GetSheetList())

	assert.Equal(t, "Code", raw(t, f, sheet, "A1"))
	assert.Equal(t, "Current", raw(t, f, sheet, "C1"))
	assert.Equal(t, "Total", raw(t, f, sheet, "H1"))

	assert.Equal(t, "C-01", raw(t, f, sheet, "A2"))
	assert.Equal(t, "Harbour Foods", raw(t, f, sheet, "B2"))
	assert.Equal(t, "1000", raw(t, f, sheet, "C2"))
	assert.Equal(t, "250.5", raw(t, f, sheet, "D2"))
	assert.Equal(t, "1250.5", raw(t, f, sheet, "H2"))

	assert.Equal(t, "Total", raw(t, f, sheet, "B3"))
	assert.Equal(t, "1250.5", raw(t, f, sheet, "H3"))
	assert.Equal(t, "2024-12-01", raw(t, f, sheet, "C5"))
	assert.Equal(t, "250.5", raw(t, f, sheet, "C6"))
}

func TestWriteAging_ProducesReadableWorkbook(t *testing.T) {
	r := sampleReport()
	r.Type = account.Payable
	r.Rows = nil

	var buf bytes.Buffer
	require.NoError(t, WriteAging(&buf, r))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Payable aging"}, f.GetSheetList())
	assert.Equal(t, "Total", raw(t, f, "Payable aging", "B2"))
	assert.Equal(t, "aging-payable-20241201.xlsx", AgingFilename(r))
}
