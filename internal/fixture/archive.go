package fixture

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/linkedin/goavro/v2"
	"go.uber.org/zap"
)

// stagingDirName is the directory under the temp root that holds one
// extraction directory per partition.
const stagingDirName = "fakestream"

// stagingMu serializes creating partition dirs with removing their shared
// parent, so one partition's cleanup cannot delete the parent under another.
var stagingMu sync.Mutex

// Archive opens a tar.gz archive containing an Avro object container file.
// Each Open extracts into <TempRoot>/fakestream/<partition> and the returned
// Dataset removes that directory on Close, along with the shared parent
// once no partition is staged in it.
type Archive struct {
	Path     string
	TempRoot string
	Logger   *zap.Logger
}

// StagingDir returns the partition-scoped extraction directory
func (a Archive) StagingDir(partitionID int) string {
	root := a.TempRoot
	if root == "" {
		root = os.TempDir()
	}
	return filepath.Join(root, stagingDirName, strconv.Itoa(partitionID))
}

// Open stages the archive for partitionID and decodes its first Avro file.
// Records are re-encoded with the file's own schema in Avro binary form.
func (a Archive) Open(partitionID int) (*Dataset, error) {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := a.StagingDir(partitionID)
	removeDir := func() error {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove staging dir %s: %w", dir, err)
		}
		stagingMu.Lock()
		defer stagingMu.Unlock()
		// fails while other partitions are staged; that is expected
		_ = os.Remove(filepath.Dir(dir))
		return nil
	}

	// fail releases the staging dir on every error path
	fail := func(op string, err error) (*Dataset, error) {
		if cerr := removeDir(); cerr != nil {
			logger.Warn("Failed to clean up staging directory",
				zap.String("dir", dir),
				zap.Error(cerr),
			)
		}
		return nil, &ArchiveError{Op: op, Path: a.Path, Err: err}
	}

	if err := removeDir(); err != nil {
		return nil, &ArchiveError{Op: "extract", Path: a.Path, Err: err}
	}
	stagingMu.Lock()
	err := os.MkdirAll(dir, 0o755)
	stagingMu.Unlock()
	if err != nil {
		return fail("extract", err)
	}

	files, err := extract(a.Path, dir)
	if err != nil {
		return fail("extract", err)
	}

	avroPath, err := firstAvro(files)
	if err != nil {
		return fail("locate", err)
	}

	f, err := os.Open(avroPath)
	if err != nil {
		return fail("open", err)
	}

	ocf, err := goavro.NewOCFReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return fail("decode", err)
	}

	logger.Debug("Staged fixture archive",
		zap.String("archive", a.Path),
		zap.String("avroFile", avroPath),
		zap.Int("partition", partitionID),
	)

	return NewDataset(ocf, AvroSerializer(ocf.Codec()), removeDir, f.Close), nil
}

// AvroSerializer encodes native Avro records in binary form with codec
func AvroSerializer(codec *goavro.Codec) func(record any) ([]byte, error) {
	return func(record any) ([]byte, error) {
		return codec.BinaryFromNative(nil, record)
	}
}

// extract unpacks the tar.gz at path into dir and returns the regular files written
func extract(path, dir string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var files []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return nil, fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}
		if err != nil {
			return nil, err
		}

		target := filepath.Join(dir, hdr.Name)
		if target != dir && !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
			return nil, fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr); err != nil {
				return nil, err
			}
			files = append(files, target)
		}
	}
}

func writeFile(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// firstAvro picks the lexically first .avro file so repeated loads agree
func firstAvro(files []string) (string, error) {
	var avro []string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".avro") {
			avro = append(avro, f)
		}
	}
	if len(avro) == 0 {
		return "", ErrNoAvroFile
	}
	sort.Strings(avro)
	return avro[0], nil
}

// WriteArchive writes records as an Avro object container file named
// entryName inside a tar.gz stream.
func WriteArchive(w io.Writer, entryName, schema string, records []map[string]any) error {
	var ocfBuf bytes.Buffer
	ocfw, err := goavro.NewOCFWriter(goavro.OCFConfig{W: &ocfBuf, Schema: schema})
	if err != nil {
		return fmt.Errorf("create avro writer: %w", err)
	}
	if len(records) > 0 {
		natives := make([]any, len(records))
		for i, r := range records {
			natives[i] = r
		}
		if err := ocfw.Append(natives); err != nil {
			return fmt.Errorf("append avro records: %w", err)
		}
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name:     entryName,
		Mode:     0o644,
		Size:     int64(ocfBuf.Len()),
		Typeflag: tar.TypeReg,
		ModTime:  time.Unix(0, 0),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write(ocfBuf.Bytes()); err != nil {
		return fmt.Errorf("write tar entry: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return nil
}
