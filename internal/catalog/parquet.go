package catalog

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/yuanying/unpub/internal/epub"
)

// Record is the flattened parquet row for one book. Creators become
// parallel name and role lists.
type Record struct {
	ID           string   `parquet:"id"`
	Title        string   `parquet:"title"`
	SortTitle    string   `parquet:"sort_title"`
	Author       string   `parquet:"author"`
	Description  string   `parquet:"description"`
	Publisher    string   `parquet:"publisher"`
	Date         string   `parquet:"date"`
	CreatorNames []string `parquet:"creator_names,list"`
	CreatorRoles []string `parquet:"creator_roles,list"`
	Subjects     []string `parquet:"subjects,list"`
}

// NewRecord flattens a book for export.
func NewRecord(b epub.BookMetadata) Record {
	r := Record{
		ID:          b.ID,
		Title:       b.Title,
		SortTitle:   b.SortTitle,
		Author:      b.Author,
		Description: b.Description,
		Publisher:   b.Publisher,
		Date:        b.Date,
		Subjects:    append([]string{}, b.Subjects...),
	}
	for _, c := range b.Creators {
		r.CreatorNames = append(r.CreatorNames, c.Name)
		r.CreatorRoles = append(r.CreatorRoles, c.Role)
	}
	return r
}

// WriteParquet writes books to w as a parquet file.
func WriteParquet(w io.Writer, books []epub.BookMetadata) error {
	records := make([]Record, 0, len(books))
	for _, b := range books {
		records = append(records, NewRecord(b))
	}

	writer := parquet.NewGenericWriter[Record](w)
	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// ReadParquet reads records written by WriteParquet.
func ReadParquet(r io.ReaderAt, size int64) ([]Record, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Record](pf)
	defer reader.Close()

	records := make([]Record, 0, pf.NumRows())
	for {
		rows := make([]Record, 128)
		n, err := reader.Read(rows)
		records = append(records, rows[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return records, nil
}
