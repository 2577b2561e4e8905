package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

const idColumn = "id"

// ReadIDs читает словарь из CSV с заголовком: колонка id, если она есть, иначе первая.
func ReadIDs(r io.Reader) ([]string, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}

	col := 0
	if i, ok := columnIndex(header, idColumn); ok {
		col = i
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = strings.TrimSpace(row[col])
	}

	return ids, nil
}

// ReadProducts читает метаданные продуктов. Порядок строк совпадает с порядком векторов.
func ReadProducts(r io.Reader) ([]domain.Product, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}

	col, ok := columnIndex(header, domain.ProductColumn)
	if !ok {
		return nil, fmt.Errorf("%w: no %q column", e.ErrMalformedTable, domain.ProductColumn)
	}

	products := make([]domain.Product, len(rows))
	for i, row := range rows {
		attrs := make(map[string]string, len(header)-1)
		for j, name := range header {
			if j != col {
				attrs[name] = strings.TrimSpace(row[j])
			}
		}
		products[i] = domain.NewProduct(strings.TrimSpace(row[col]), attrs)
	}

	return products, nil
}

func readTable(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty file", e.ErrMalformedTable)
		}
		return nil, nil, fmt.Errorf("%w: %v", e.ErrMalformedTable, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", e.ErrMalformedTable, err)
	}

	return header, rows, nil
}

func columnIndex(header []string, name string) (int, bool) {
	for i, h := range header {
		if h == name {
			return i, true
		}
	}

	return 0, false
}
