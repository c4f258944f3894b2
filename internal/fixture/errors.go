package fixture

import "errors"

// Common fixture errors.
var (
	// ErrNoAvroFile indicates the archive held no file with the .avro extension.
	ErrNoAvroFile = errors.New("no avro file in archive")

	// ErrUnsafePath indicates an archive entry that would escape the staging directory.
	ErrUnsafePath = errors.New("archive entry escapes staging directory")
)

// ArchiveError represents a failure to stage or decode a fixture archive.
// Op names the failed step (extract, locate, open, decode).
type ArchiveError struct {
	Op   string
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	if e == nil || e.Err == nil {
		return "fixture archive failed"
	}
	return "fixture archive " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ArchiveError) Unwrap() error { return e.Err }
