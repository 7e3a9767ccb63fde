package finance

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// WorkbookContentType is the media type of the exported workbooks.
const WorkbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	recordsSheet = "Lançamentos"
	summarySheet = "Resumo"
)

var (
	exportHeader = []string{"Data", "Tipo", "Categoria", "Descrição", "Valor (R$)"}
	columnWidths = []float64{12, 10, 24, 48, 14}

	kindLabels = map[Kind]string{
		KindIncome:  "Receita",
		KindExpense: "Despesa",
	}
)

// WriteWorkbook lays recs out on a records sheet plus a summary sheet and returns the xlsx bytes.
func WriteWorkbook(recs []Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(recordsSheet)
	if err != nil {
		return nil, errors.Wrap(err, "creating sheet")
	}
	if err = f.DeleteSheet("Sheet1"); err != nil {
		return nil, errors.Wrap(err, "deleting default sheet")
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, errors.Wrap(err, "creating money style")
	}

	for col, header := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err = f.SetCellValue(recordsSheet, cell, header); err != nil {
			return nil, errors.Wrapf(err, "setting header cell %s", cell)
		}
		if err = f.SetCellStyle(recordsSheet, cell, cell, headerStyle); err != nil {
			return nil, errors.Wrap(err, "setting header style")
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err = f.SetColWidth(recordsSheet, name, name, columnWidths[col]); err != nil {
			return nil, errors.Wrap(err, "setting column width")
		}
	}

	for i, r := range recs {
		row := i + 2
		values := []interface{}{r.Date, kindLabels[r.Kind], r.Category, r.Description, float64(r.AmountCents) / 100}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err = f.SetCellValue(recordsSheet, cell, v); err != nil {
				return nil, errors.Wrapf(err, "setting cell %s", cell)
			}
		}
		amountCell, _ := excelize.CoordinatesToCellName(len(values), row)
		if err = f.SetCellStyle(recordsSheet, amountCell, amountCell, moneyStyle); err != nil {
			return nil, errors.Wrap(err, "setting money style")
		}
	}

	if err = writeSummary(f, Summarize(recs), headerStyle, moneyStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err = f.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, sum Summary, headerStyle, moneyStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return errors.Wrap(err, "creating summary sheet")
	}
	rows := [][]interface{}{
		{"Receitas", float64(sum.IncomeCents) / 100},
		{"Despesas", float64(sum.ExpenseCents) / 100},
		{"Saldo", float64(sum.BalanceCents) / 100},
		{"Lançamentos", sum.Count},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(summarySheet, "A"+strconv.Itoa(i+1), &row); err != nil {
			return errors.Wrap(err, "writing summary row")
		}
		label := "A" + strconv.Itoa(i+1)
		if err := f.SetCellStyle(summarySheet, label, label, headerStyle); err != nil {
			return errors.Wrap(err, "setting summary style")
		}
		if i < 3 {
			amount := "B" + strconv.Itoa(i+1)
			if err := f.SetCellStyle(summarySheet, amount, amount, moneyStyle); err != nil {
				return errors.Wrap(err, "setting summary style")
			}
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 16)
}
