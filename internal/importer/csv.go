package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"storefront/internal/domain"
)

// CSVSource reads products from a CSV export. A row with a handle starts a product; rows
// without one add variants or images to the product above them.
type CSVSource struct {
	reader   *csv.Reader
	currency string
}

func NewCSVSource(r io.Reader, defaultCurrency string) *CSVSource {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &CSVSource{reader: csvr, currency: defaultCurrency}
}

type csvRow struct {
	ID          string
	Handle      string
	Title       string
	Desc        string
	Category    string
	Tags        []string
	VariantID   string
	VariantName string
	OptionName  string
	OptionValue string
	Price       string
	Currency    string
	ImageURL    string
}

// Products parses all rows. Malformed products fail the whole read.
func (s *CSVSource) Products(_ context.Context) ([]domain.Product, error) {
	headers, err := s.reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		out     []domain.Product
		current *domain.Product
	)
	now := time.Now().UTC()
	flush := func() error {
		if current == nil {
			return nil
		}
		current.PriceRange = domain.PriceRangeOf(current.Variants, s.currency)
		if len(current.Images) > 0 {
			first := current.Images[0]
			current.FeaturedImage = &first
		}
		if err := current.Validate(); err != nil {
			return fmt.Errorf("product %q: %w", current.Handle, err)
		}
		out = append(out, *current)
		return nil
	}

	for {
		record, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}

		if row.Handle != "" {
			if err := flush(); err != nil {
				return nil, err
			}
			current = s.newProduct(row, now)
		} else if current == nil {
			return nil, errors.New("continuation row before any product row")
		}

		if row.VariantID != "" {
			current.Variants = append(current.Variants, s.variant(row))
			addOptionValue(current, row.OptionName, row.OptionValue)
		}
		if row.ImageURL != "" {
			current.Images = append(current.Images, domain.Image{URL: row.ImageURL, AltText: current.Title})
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CSVSource) newProduct(row *csvRow, now time.Time) *domain.Product {
	id := row.ID
	if id == "" {
		id = "csv-" + row.Handle
	}
	p := &domain.Product{
		ID:               id,
		Handle:           domain.Slugify(row.Handle),
		Title:            row.Title,
		Description:      row.Desc,
		AvailableForSale: true,
		Category:         row.Category,
		Tags:             row.Tags,
		Options:          []domain.ProductOption{},
		Images:           []domain.Image{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if row.Desc != "" {
		p.DescriptionHTML = "<p>" + row.Desc + "</p>"
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

func (s *CSVSource) variant(row *csvRow) domain.Variant {
	currency := row.Currency
	if currency == "" {
		currency = s.currency
	}
	v := domain.Variant{
		ID:               row.VariantID,
		Title:            row.VariantName,
		AvailableForSale: true,
		SelectedOptions:  []domain.SelectedOption{},
		Price:            domain.Money{Amount: row.Price, CurrencyCode: strings.ToUpper(currency)},
	}
	if v.Title == "" {
		v.Title = "Default Title"
	}
	if row.OptionName != "" && row.OptionValue != "" {
		v.SelectedOptions = append(v.SelectedOptions, domain.SelectedOption{Name: row.OptionName, Value: row.OptionValue})
	}
	return v
}

func addOptionValue(p *domain.Product, name, value string) {
	if name == "" || value == "" {
		return
	}
	for i := range p.Options {
		if p.Options[i].Name != name {
			continue
		}
		for _, v := range p.Options[i].Values {
			if v == value {
				return
			}
		}
		p.Options[i].Values = append(p.Options[i].Values, value)
		return
	}
	p.Options = append(p.Options, domain.ProductOption{ID: domain.Slugify(name), Name: name, Values: []string{value}})
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	row := &csvRow{
		ID:          pick(record, index, "id"),
		Handle:      pick(record, index, "handle"),
		Title:       pick(record, index, "title"),
		Desc:        pick(record, index, "description"),
		Category:    pick(record, index, "category"),
		VariantID:   pick(record, index, "variant.id"),
		VariantName: pick(record, index, "variant.title"),
		OptionName:  pick(record, index, "variant.option.name"),
		OptionValue: pick(record, index, "variant.option.value"),
		Price:       pick(record, index, "variant.price"),
		Currency:    pick(record, index, "variant.currency"),
		ImageURL:    pick(record, index, "image.url"),
	}
	if row.Handle == "" && row.VariantID == "" && row.ImageURL == "" {
		return nil
	}
	if tags := pick(record, index, "tags"); tags != "" {
		for _, t := range strings.Split(tags, ";") {
			if t = strings.TrimSpace(t); t != "" {
				row.Tags = append(row.Tags, t)
			}
		}
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
