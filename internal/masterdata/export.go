package masterdata

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
	// exportMinPerPage is the smallest page size used when exporting all rows.
	exportMinPerPage = 50
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteCSV writes rows with a header line taken from the exportable columns.
func WriteCSV[T any](w io.Writer, columns []Column[T], rows []T) error {
	streamer := newCSVStreamer(w)
	var exported []Column[T]
	header := make([]string, 0, len(columns))
	for _, col := range columns {
		if col.Export == nil {
			continue
		}
		exported = append(exported, col)
		header = append(header, col.Label)
	}
	if err := streamer.writeRow(header); err != nil {
		return err
	}
	record := make([]string, len(exported))
	for _, row := range rows {
		for i, col := range exported {
			record[i] = col.Export(row)
		}
		if err := streamer.writeRow(record); err != nil {
			return err
		}
	}
	return streamer.Flush()
}

// ExportPage writes the rows currently shown.
func (c *Controller[T, P]) ExportPage(w io.Writer) error {
	return WriteCSV(w, c.def.Columns, c.View().Rows)
}

// ExportAll writes every row matching the current query.
func (c *Controller[T, P]) ExportAll(ctx context.Context, w io.Writer) error {
	rows, err := c.FetchAll(ctx)
	if err != nil {
		c.notifier.Notify(LevelError, err.Error())
		return err
	}
	if err := WriteCSV(w, c.def.Columns, rows); err != nil {
		return err
	}
	c.notifier.Notify(LevelSuccess, fmt.Sprintf("Seluruh data %s berhasil diekspor.", c.def.Name))
	return nil
}

// FetchAll pages through the source until the reported page count is
// exhausted or an empty page is returned. Rows are de-duplicated by id;
// rows with an empty id are never merged.
func (c *Controller[T, P]) FetchAll(ctx context.Context) ([]T, error) {
	st := c.Query()
	return fetchAll(ctx, c.src, st, c.def.GetRowID)
}

func fetchAll[T, P any](ctx context.Context, src Source[T, P], st query.State, rowID func(T) string) ([]T, error) {
	if st.PerPage < exportMinPerPage {
		st.PerPage = exportMinPerPage
	}
	var (
		aggregated []T
		seen       = make(map[string]struct{})
		current    = 1
		totalPages = 1
	)
	for current <= totalPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st.Page = current
		page, err := src.List(ctx, st)
		if err != nil {
			return nil, err
		}
		for _, row := range page.Rows {
			// Rows without an id cannot be told apart, so they are all kept.
			if id := rowID(row); id != "" {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			aggregated = append(aggregated, row)
		}
		reported := page.TotalPages
		if reported == 0 {
			reported = current
		}
		if reported > totalPages {
			totalPages = reported
		}
		if len(page.Rows) == 0 {
			break
		}
		current++
	}
	return aggregated, nil
}
