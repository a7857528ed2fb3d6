package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ridelens/ridelens/internal/storage"
)

const DefaultRowsPerFile = 50000

type PublishOptions struct {
	BatchID     string
	RowsPerFile int
	// Replace removes every existing dataset file before uploading.
	Replace bool
}

type PublishResult struct {
	Files   []storage.ObjectInfo
	Trips   int
	Removed int
}

// Publisher uploads trips to the object store as month-partitioned Parquet
// files.
type Publisher struct {
	store storage.ObjectStore
	log   *slog.Logger
}

func NewPublisher(store storage.ObjectStore, logger *slog.Logger) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{store: store, log: logger}, nil
}

func (p *Publisher) Publish(ctx context.Context, trips []Trip, opts PublishOptions) (PublishResult, error) {
	if len(trips) == 0 {
		return PublishResult{}, fmt.Errorf("trips are required")
	}
	if opts.BatchID == "" {
		opts.BatchID = time.Now().UTC().Format("20060102T150405")
	}
	if opts.RowsPerFile <= 0 {
		opts.RowsPerFile = DefaultRowsPerFile
	}

	months, err := groupByMonth(trips)
	if err != nil {
		return PublishResult{}, err
	}

	result := PublishResult{Trips: len(trips)}
	if opts.Replace {
		removed, err := p.removeExisting(ctx)
		if err != nil {
			return PublishResult{}, err
		}
		result.Removed = removed
	}

	keys := make([]time.Time, 0, len(months))
	for month := range months {
		keys = append(keys, month)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	for _, month := range keys {
		rows := months[month]
		for part, offset := 0, 0; offset < len(rows); part, offset = part+1, offset+opts.RowsPerFile {
			end := min(offset+opts.RowsPerFile, len(rows))
			info, err := p.putPart(ctx, opts.BatchID, month, part, rows[offset:end])
			if err != nil {
				return result, err
			}
			result.Files = append(result.Files, info)
		}
	}

	p.log.Info("dataset published",
		slog.String("batch_id", opts.BatchID),
		slog.Int("trips", result.Trips),
		slog.Int("files", len(result.Files)),
		slog.Int("removed", result.Removed),
	)
	return result, nil
}

func (p *Publisher) putPart(ctx context.Context, batchID string, month time.Time, part int, rows []Trip) (storage.ObjectInfo, error) {
	key, err := storage.BuildTripFilePath(batchID, month, part)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	data, err := EncodeParquet(rows)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("encode %s: %w", key, err)
	}
	info, err := p.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: storage.ParquetContentType})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload %s: %w", key, err)
	}
	p.log.Debug("dataset file uploaded", slog.String("key", info.Key), slog.Int("rows", len(rows)), slog.Int64("bytes", info.Size))
	return info, nil
}

func (p *Publisher) removeExisting(ctx context.Context) (int, error) {
	existing, err := p.store.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list existing dataset files: %w", err)
	}
	removed := 0
	for _, object := range existing {
		if !storage.IsParquetKey(object.Key) {
			continue
		}
		if err := p.store.Delete(ctx, object.Key); err != nil {
			return removed, fmt.Errorf("remove %s: %w", object.Key, err)
		}
		removed++
	}
	return removed, nil
}

func groupByMonth(trips []Trip) (map[time.Time][]Trip, error) {
	months := make(map[time.Time][]Trip)
	for _, trip := range trips {
		month, ok := trip.BookingMonth()
		if !ok {
			return nil, fmt.Errorf("trip %s has invalid booking date %q", trip.BookingID, trip.BookingDate)
		}
		months[month] = append(months[month], trip)
	}
	return months, nil
}
