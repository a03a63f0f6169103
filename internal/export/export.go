// Package export writes wallet transaction history to CSV or Parquet files,
// locally or in cloud storage.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/chrisdamba/chowrider/internal/cloudwriter"
	"github.com/chrisdamba/chowrider/internal/models"
)

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"

	DestinationLocal = "local"
	DestinationCloud = "cloud"
)

var csvHeader = []string{"id", "date", "type", "category", "status", "amount", "description", "reference"}

// transactionRow is the Parquet layout of a transaction.
type transactionRow struct {
	ID          string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Date        int64   `parquet:"name=date, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Type        string  `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Category    string  `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Status      string  `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Amount      float64 `parquet:"name=amount, type=DOUBLE"`
	Description string  `parquet:"name=description, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reference   string  `parquet:"name=reference, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func rowOf(t models.Transaction) transactionRow {
	return transactionRow{
		ID:          t.ID,
		Date:        t.Date.UnixMilli(),
		Type:        t.Type,
		Category:    t.Category,
		Status:      t.Status,
		Amount:      t.Amount,
		Description: t.Description,
		Reference:   t.Reference,
	}
}

type Exporter struct {
	format      string
	destination string
	basePath    string
	bucket      string
	factory     cloudwriter.CloudWriterFactory
	progress    io.Writer
	logger      *slog.Logger
	now         func() time.Time
}

// New builds an exporter for cfg. Cloud destinations get their writer
// factory from cfg.CloudStorage.
func New(ctx context.Context, cfg models.ExportConfig, progress io.Writer, logger *slog.Logger) (*Exporter, error) {
	var factory cloudwriter.CloudWriterFactory
	if cfg.Destination == DestinationCloud {
		var err error
		factory, err = cloudwriter.NewFactory(ctx, cfg.CloudStorage)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud writer factory: %w", err)
		}
	}
	return NewWithFactory(cfg, factory, progress, logger)
}

func NewWithFactory(cfg models.ExportConfig, factory cloudwriter.CloudWriterFactory, progress io.Writer, logger *slog.Logger) (*Exporter, error) {
	switch cfg.Format {
	case FormatCSV, FormatParquet:
	default:
		return nil, fmt.Errorf("unsupported export format: %s", cfg.Format)
	}
	switch cfg.Destination {
	case DestinationLocal:
	case DestinationCloud:
		if factory == nil {
			return nil, fmt.Errorf("cloud export needs a writer factory")
		}
	default:
		return nil, fmt.Errorf("unsupported export destination: %s", cfg.Destination)
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Exporter{
		format:      cfg.Format,
		destination: cfg.Destination,
		basePath:    cfg.OutputPath,
		bucket:      cfg.CloudStorage.BucketName,
		factory:     factory,
		progress:    progress,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Export writes txs as name_<timestamp>.<format> and returns where it went.
func (e *Exporter) Export(ctx context.Context, name string, txs []models.Transaction) (string, error) {
	file := fmt.Sprintf("%s_%s.%s", name, e.now().UTC().Format("20060102-150405"), e.format)

	bar := progressbar.NewOptions(len(txs),
		progressbar.OptionSetWriter(e.progress),
		progressbar.OptionSetDescription("exporting "+name),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	var location string
	var err error
	switch e.destination {
	case DestinationCloud:
		location, err = e.exportCloud(ctx, file, txs, bar)
	default:
		location, err = e.exportLocal(file, txs, bar)
	}
	if err != nil {
		return "", err
	}
	e.logger.Info("transactions exported", "location", location, "rows", len(txs), "format", e.format)
	return location, nil
}

func (e *Exporter) exportLocal(file string, txs []models.Transaction, bar *progressbar.ProgressBar) (string, error) {
	if err := os.MkdirAll(e.basePath, 0o755); err != nil {
		return "", err
	}
	fullPath := filepath.Join(e.basePath, file)

	if e.format == FormatParquet {
		fw, err := local.NewLocalFileWriter(fullPath)
		if err != nil {
			return "", fmt.Errorf("failed to create local file writer: %w", err)
		}
		if err := writeParquet(fw, txs, bar); err != nil {
			return "", err
		}
		return fullPath, nil
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return "", err
	}
	if err := writeCSV(f, txs, bar); err != nil {
		f.Close()
		return "", err
	}
	return fullPath, f.Close()
}

func (e *Exporter) exportCloud(ctx context.Context, file string, txs []models.Transaction, bar *progressbar.ProgressBar) (string, error) {
	objectPath := path.Join(e.basePath, file)
	cw, err := e.factory.NewWriter(ctx, e.bucket, objectPath)
	if err != nil {
		return "", fmt.Errorf("failed to create cloud file writer: %w", err)
	}

	if e.format == FormatParquet {
		err = writeParquet(NewCloudParquetFile(cw), txs, bar)
	} else {
		err = writeCSV(cw, txs, bar)
		if err == nil {
			err = cw.Close()
		}
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", e.bucket, objectPath), nil
}

func writeCSV(w io.Writer, txs []models.Transaction, bar *progressbar.ProgressBar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range txs {
		row := []string{
			t.ID,
			t.Date.UTC().Format(time.RFC3339),
			t.Type,
			t.Category,
			t.Status,
			strconv.FormatFloat(t.Amount, 'f', 2, 64),
			t.Description,
			t.Reference,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		bar.Add(1)
	}
	cw.Flush()
	return cw.Error()
}

// writeParquet writes every row and closes fw.
func writeParquet(fw source.ParquetFile, txs []models.Transaction, bar *progressbar.ProgressBar) error {
	pw, err := writer.NewParquetWriter(fw, new(transactionRow), 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	for _, t := range txs {
		if err := pw.Write(rowOf(t)); err != nil {
			fw.Close()
			return fmt.Errorf("failed to write transaction %s: %w", t.ID, err)
		}
		bar.Add(1)
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return fw.Close()
}
