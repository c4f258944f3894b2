package consumer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/fixture"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/partition"
)

func payloads(n int) [][]byte {
	out := make([][]byte, n)
	for i := range n {
		out[i] = []byte(fmt.Sprintf("msg-%02d", i))
	}
	return out
}

func newTestConsumer(t *testing.T, records [][]byte, id, numPartitions, batchSize int) *PartitionConsumer {
	t.Helper()

	cfg := &config.StreamConfig{Topic: "test", NumPartitions: numPartitions, BatchSize: batchSize}
	pc, err := NewPartitionConsumer(id, cfg, fixture.InMemory{Records: records}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewPartitionConsumer: %v", err)
	}
	return pc
}

func failingOpener(err error) fixture.Opener {
	return fixture.OpenerFunc(func(int) (*fixture.Dataset, error) { return nil, err })
}

func TestFetch_Boundaries(t *testing.T) {
	t.Parallel()

	pc := newTestConsumer(t, payloads(10), 0, 1, 100)

	tests := []struct {
		name        string
		start       int64
		max         int
		wantOffsets []int64
		wantNext    int64
	}{
		{name: "head_capped", start: 0, max: 3, wantOffsets: []int64{0, 1, 2}, wantNext: 3},
		{name: "tail_truncated", start: 8, max: 3, wantOffsets: []int64{8, 9}, wantNext: 10},
		{name: "whole_partition", start: 0, max: 100, wantOffsets: []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, wantNext: 10},
		{name: "last_record", start: 9, max: 1, wantOffsets: []int64{9}, wantNext: 10},
		{name: "empty_tail", start: 10, max: 3, wantNext: 10},
		{name: "empty_tail_zero_cap", start: 10, max: 0, wantNext: 10},
		{name: "past_end", start: 15, max: 3, wantNext: 15},
		{name: "zero_cap", start: 4, max: 0, wantNext: 4},
		{name: "negative_cap", start: 4, max: -2, wantNext: 4},
		{name: "negative_start", start: -1, max: 3, wantNext: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			batch := pc.Fetch(tt.start, tt.max, 50*time.Millisecond)
			if batch.NextOffset != tt.wantNext {
				t.Fatalf("expected NextOffset %d, got %d", tt.wantNext, batch.NextOffset)
			}
			if batch.Len() != len(tt.wantOffsets) {
				t.Fatalf("expected %d records, got %d", len(tt.wantOffsets), batch.Len())
			}
			if len(tt.wantOffsets) == 0 {
				if !batch.Empty() {
					t.Fatalf("expected empty batch")
				}
				return
			}
			if !reflect.DeepEqual(batch.Offsets, tt.wantOffsets) {
				t.Fatalf("expected offsets %v, got %v", tt.wantOffsets, batch.Offsets)
			}
			for i, off := range batch.Offsets {
				want := fmt.Sprintf("msg-%02d", off)
				if string(batch.Records[i]) != want {
					t.Fatalf("record at offset %d = %q, want %q", off, batch.Records[i], want)
				}
			}
		})
	}
}

func TestFetch_PartitionedOffsetsAreLocal(t *testing.T) {
	t.Parallel()

	// partition 1 of 3 holds global records 1, 4, 7, 10
	pc := newTestConsumer(t, payloads(12), 1, 3, 2)
	if pc.Size() != 4 {
		t.Fatalf("expected 4 records, got %d", pc.Size())
	}

	first := pc.FetchMessages(0, 0)
	second := pc.FetchMessages(first.NextOffset, 0)
	third := pc.FetchMessages(second.NextOffset, 0)

	if !reflect.DeepEqual(first.Offsets, []int64{0, 1}) || !reflect.DeepEqual(second.Offsets, []int64{2, 3}) {
		t.Fatalf("unexpected offsets %v then %v", first.Offsets, second.Offsets)
	}
	if string(first.Records[0]) != "msg-01" || string(second.Records[1]) != "msg-10" {
		t.Fatalf("unexpected records %q, %q", first.Records[0], second.Records[1])
	}
	if !third.Empty() || third.NextOffset != 4 {
		t.Fatalf("expected empty batch at 4, got %d records next %d", third.Len(), third.NextOffset)
	}
}

func TestFetch_Idempotent(t *testing.T) {
	t.Parallel()

	pc := newTestConsumer(t, payloads(10), 0, 1, 100)

	a := pc.Fetch(2, 4, 0)
	// callers own returned data; scribbling on it must not leak into the store
	a.Records[0][0] = 'X'
	a.Offsets[0] = 99

	b := pc.Fetch(2, 4, 0)
	c := pc.Fetch(2, 4, 0)
	if !reflect.DeepEqual(b, c) {
		t.Fatalf("expected identical batches, got %+v and %+v", b, c)
	}
	if b.NextOffset != 6 || b.Offsets[0] != 2 || !bytes.Equal(b.Records[0], []byte("msg-02")) {
		t.Fatalf("store was mutated through a returned batch: %+v", b)
	}
}

func TestFetch_EmptyLoadDegradation(t *testing.T) {
	t.Parallel()

	cfg := &config.StreamConfig{Topic: "test", NumPartitions: 2, BatchSize: 5}

	failed, err := NewPartitionConsumer(0, cfg, failingOpener(errors.New("fixture missing")), zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("expected load failure to be swallowed, got %v", err)
	}
	empty, err := NewPartitionConsumer(1, cfg, fixture.InMemory{}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if failed.LoadErr() == nil {
		t.Fatalf("expected LoadErr for failed load")
	}
	if empty.LoadErr() != nil {
		t.Fatalf("expected nil LoadErr for empty dataset, got %v", empty.LoadErr())
	}

	for _, pc := range []*PartitionConsumer{failed, empty} {
		for _, start := range []int64{0, 1, 7, 1000} {
			batch := pc.Fetch(start, 10, 0)
			if !batch.Empty() || batch.NextOffset != start {
				t.Fatalf("partition %d: fetch(%d) returned %d records next %d", pc.ID(), start, batch.Len(), batch.NextOffset)
			}
		}
	}
}

func TestNewPartitionConsumer_LogsLoadFailure(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	cfg := &config.StreamConfig{Topic: "test", NumPartitions: 1, BatchSize: 5}

	if _, err := NewPartitionConsumer(0, cfg, failingOpener(errors.New("fixture missing")), zap.New(core), nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if logs.FilterMessage("Could not open dataset, serving partition empty").Len() != 1 {
		t.Fatalf("expected the open failure to be logged, got %v", logs.All())
	}
}

func TestNewPartitionConsumer_ReleaseFailureIsLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	opener := fixture.OpenerFunc(func(int) (*fixture.Dataset, error) {
		return fixture.NewDataset(partition.NewSliceSource(payloads(4)), partition.BytesSerializer, func() error {
			return errors.New("remove staging dir: permission denied")
		}), nil
	})

	cfg := &config.StreamConfig{Topic: "test", NumPartitions: 1, BatchSize: 5}
	pc, err := NewPartitionConsumer(0, cfg, opener, zap.New(core), nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if pc.Size() != 4 {
		t.Fatalf("expected 4 records, got %d", pc.Size())
	}
	if pc.LoadErr() != nil {
		t.Fatalf("expected nil LoadErr, got %v", pc.LoadErr())
	}

	released := logs.FilterMessage("Failed to release dataset")
	if released.Len() != 1 {
		t.Fatalf("expected 1 release warning, got %v", logs.All())
	}
	if got := released.All()[0].ContextMap()["partition"]; got != int64(0) {
		t.Fatalf("expected partition field 0, got %v", got)
	}
}

func TestNewPartitionConsumer_RecoversDecoderPanic(t *testing.T) {
	t.Parallel()

	released := false
	opener := fixture.OpenerFunc(func(int) (*fixture.Dataset, error) {
		panicking := func(any) ([]byte, error) { panic("decoder bug") }
		return fixture.NewDataset(partition.NewSliceSource(payloads(3)), panicking, func() error {
			released = true
			return nil
		}), nil
	})

	cfg := &config.StreamConfig{Topic: "test", NumPartitions: 1, BatchSize: 5}
	pc, err := NewPartitionConsumer(0, cfg, opener, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if pc.Size() != 0 || pc.LoadErr() == nil {
		t.Fatalf("expected empty failed partition, got size %d err %v", pc.Size(), pc.LoadErr())
	}
	if !released {
		t.Fatalf("expected dataset to be released after panic")
	}
}

func TestNewPartitionConsumer_InvalidArguments(t *testing.T) {
	t.Parallel()

	valid := &config.StreamConfig{Topic: "test", NumPartitions: 2, BatchSize: 5}
	opener := fixture.InMemory{}

	tests := []struct {
		name   string
		id     int
		cfg    *config.StreamConfig
		opener fixture.Opener
		logger *zap.Logger
	}{
		{name: "nil_config", id: 0, cfg: nil, opener: opener, logger: zap.NewNop()},
		{name: "nil_opener", id: 0, cfg: valid, opener: nil, logger: zap.NewNop()},
		{name: "nil_logger", id: 0, cfg: valid, opener: opener, logger: nil},
		{name: "id_too_large", id: 2, cfg: valid, opener: opener, logger: zap.NewNop()},
		{name: "negative_id", id: -1, cfg: valid, opener: opener, logger: zap.NewNop()},
		{name: "zero_partitions", id: 0, cfg: &config.StreamConfig{NumPartitions: 0, BatchSize: 5}, opener: opener, logger: zap.NewNop()},
		{name: "zero_batch", id: 0, cfg: &config.StreamConfig{NumPartitions: 1, BatchSize: 0}, opener: opener, logger: zap.NewNop()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewPartitionConsumer(tt.id, tt.cfg, tt.opener, tt.logger, nil); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestNewPartitionConsumer_WithPartitioner(t *testing.T) {
	t.Parallel()

	everythingToZero := func(position, numPartitions int) int { return 0 }
	cfg := &config.StreamConfig{Topic: "test", NumPartitions: 3, BatchSize: 5}

	zero, err := NewPartitionConsumer(0, cfg, fixture.InMemory{Records: payloads(6)}, zap.NewNop(), nil, WithPartitioner(everythingToZero))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	two, err := NewPartitionConsumer(2, cfg, fixture.InMemory{Records: payloads(6)}, zap.NewNop(), nil, WithPartitioner(everythingToZero))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if zero.Size() != 6 || two.Size() != 0 {
		t.Fatalf("expected sizes 6 and 0, got %d and %d", zero.Size(), two.Size())
	}
}

func TestFetch_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	pc := newTestConsumer(t, payloads(50), 0, 1, 7)
	want := pc.Fetch(10, 7, 0)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if got := pc.Fetch(10, 7, 0); !reflect.DeepEqual(got, want) {
					errs <- fmt.Errorf("got %+v, want %+v", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
}

func TestFetch_RecordsMetrics(t *testing.T) {
	t.Parallel()

	metrics := obs.NewMetrics("test", prometheus.NewRegistry())
	cfg := &config.StreamConfig{Topic: "test", NumPartitions: 1, BatchSize: 4}

	pc, err := NewPartitionConsumer(0, cfg, fixture.InMemory{Records: payloads(6)}, zap.NewNop(), metrics)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	pc.FetchMessages(0, 0)
	pc.FetchMessages(4, 0)
	pc.FetchMessages(6, 0)

	if got := testutil.ToFloat64(metrics.PartitionRecords.WithLabelValues("0")); got != 6 {
		t.Errorf("expected partition_records 6, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.FetchRequestsTotal.WithLabelValues("0")); got != 3 {
		t.Errorf("expected 3 fetches, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RecordsFetchedTotal.WithLabelValues("0")); got != 6 {
		t.Errorf("expected 6 records fetched, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.EmptyFetchesTotal.WithLabelValues("0")); got != 1 {
		t.Errorf("expected 1 empty fetch, got %v", got)
	}
}

func TestNewPartitionConsumer_FromAvroArchive(t *testing.T) {
	t.Parallel()

	schema := `{"type":"record","name":"Event","fields":[{"name":"seq","type":"int"}]}`
	records := make([]map[string]any, 9)
	for i := range records {
		records[i] = map[string]any{"seq": int32(i)}
	}

	var buf bytes.Buffer
	if err := fixture.WriteArchive(&buf, "events.avro", schema, records); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	path := filepath.Join(t.TempDir(), "events.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	archive := fixture.Archive{Path: path, TempRoot: t.TempDir()}
	cfg := &config.StreamConfig{Topic: "events", NumPartitions: 2, BatchSize: 10}

	pc, err := NewPartitionConsumer(0, cfg, archive, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if pc.LoadErr() != nil {
		t.Fatalf("expected successful load, got %v", pc.LoadErr())
	}
	if pc.Size() != 5 {
		t.Fatalf("expected 5 records in partition 0, got %d", pc.Size())
	}
	if _, err := os.Stat(archive.StagingDir(0)); !os.IsNotExist(err) {
		t.Fatalf("expected staging dir to be removed, stat err = %v", err)
	}
	if err := pc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
