package partition

// Source yields decoded records in global stream order.
// Scan reports whether another record is available; Read returns it.
// Err reports the error that stopped scanning early, if any.
//
// *goavro.OCFReader satisfies Source.
type Source interface {
	Scan() bool
	Read() (any, error)
	Err() error
}

// Serializer turns one decoded record into its wire payload
type Serializer func(record any) ([]byte, error)

// SliceSource serves records that are already byte payloads
type SliceSource struct {
	records [][]byte
	next    int
}

// NewSliceSource creates a Source over records, in order
func NewSliceSource(records [][]byte) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Scan() bool {
	return s.next < len(s.records)
}

func (s *SliceSource) Read() (any, error) {
	if s.next >= len(s.records) {
		return nil, ErrSourceExhausted
	}
	rec := s.records[s.next]
	s.next++
	return rec, nil
}

func (s *SliceSource) Err() error { return nil }

// BytesSerializer copies a []byte record. Any other record type is an error.
func BytesSerializer(record any) ([]byte, error) {
	b, ok := record.([]byte)
	if !ok {
		return nil, &UnsupportedRecordError{Record: record}
	}
	return append([]byte(nil), b...), nil
}
