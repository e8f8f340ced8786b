package format

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const sheetName = "Export"

// WriteXLSX emits a single-sheet workbook with humanised column headers.
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	keys := headerKeys(records)
	titler := cases.Title(language.English)
	for col, key := range keys {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		header := titler.String(strings.ReplaceAll(key, "_", " "))
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
	}
	for rowIdx, record := range records {
		for col, key := range keys {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, record[key]); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}
