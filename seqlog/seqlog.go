package seqlog

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/redwren/redwrenlib/errors"
	"github.com/redwren/redwrenlib/model"
)

// logVersion is the version tag carried by the header record. The log
// format shares V1's parameter contract: one global block for all sensors.
const logVersion = "0.0.1"

// frameHeaderSize is the fixed prefix of every record: a big-endian payload
// length followed by the payload's CRC32 (IEEE).
const frameHeaderSize = 8

// maxFrameSize bounds a single record so a corrupted length prefix cannot
// drive an allocation of the whole address space.
const maxFrameSize = 1 << 30

// header is the first record of every log: the version tag and the global
// parameter block.
type header struct {
	Version    string           `msgpack:"version"`
	Parameters model.Parameters `msgpack:"parameters"`
}

// sensorRecord is one appended record: a sensor label and the component
// sets fitted for it. A full scan of all records reconstructs the store;
// records for the same label accumulate in append order.
type sensorRecord struct {
	Label string               `msgpack:"label"`
	Sets  []componentSetRecord `msgpack:"models"`
}

type componentSetRecord struct {
	Weights           []float64     `msgpack:"weights"`
	Means             [][]float64   `msgpack:"means"`
	Covariances       [][][]float64 `msgpack:"covariances"`
	PrecisionCholesky [][][]float64 `msgpack:"precision_cholesky"`
	NComponents       int           `msgpack:"n_components"`
}

func toRecord(set *model.GaussianComponentSet) componentSetRecord {
	return componentSetRecord{
		Weights:           set.Weights,
		Means:             set.MeansRows(),
		Covariances:       set.CovarianceRows(),
		PrecisionCholesky: set.PrecisionCholeskyRows(),
		NComponents:       set.NComponents,
	}
}

func (r componentSetRecord) toSet(label string, idx int) (*model.GaussianComponentSet, error) {
	set, err := model.NewComponentSet(r.NComponents, r.Weights, r.Means,
		r.Covariances, r.PrecisionCholesky)
	if err != nil {
		return nil, errors.WrapCorrupt(err, "seqlog", "Read",
			fmt.Sprintf("validate sensor %q record %d", label, idx))
	}
	return set, nil
}

// Create writes a fresh log containing only the header record, truncating
// any existing file at path.
func Create(path string, params model.Parameters) error {
	release, err := acquire(path, "Create")
	if err != nil {
		return err
	}
	defer release()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.WrapIO(err, "seqlog", "Create", "truncate log")
	}
	defer f.Close()

	if err := writeFrame(f, header{Version: logVersion, Parameters: params}); err != nil {
		return errors.WrapIO(err, "seqlog", "Create", "write header record")
	}
	if err := f.Sync(); err != nil {
		return errors.WrapIO(err, "seqlog", "Create", "sync log")
	}
	return nil
}

// Write commits the given models to the log at path. With override the log
// is recreated with a fresh header; otherwise one record per sensor is
// appended after the existing stream (creating the log, header first, if it
// does not exist yet). The file lock is held for the duration of the call
// and released on every exit path.
func Write(path string, models map[string]*model.SensorModelEntry, params model.Parameters, override bool) error {
	release, err := acquire(path, "Write")
	if err != nil {
		return err
	}
	defer release()

	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if override {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return errors.WrapIO(err, "seqlog", "Write", "open log")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.WrapIO(err, "seqlog", "Write", "stat log")
	}
	if info.Size() == 0 {
		if err := writeFrame(f, header{Version: logVersion, Parameters: params}); err != nil {
			return errors.WrapIO(err, "seqlog", "Write", "write header record")
		}
	}

	for label, entry := range models {
		rec := sensorRecord{Label: label, Sets: make([]componentSetRecord, 0, len(entry.Sets))}
		for _, set := range entry.Sets {
			rec.Sets = append(rec.Sets, toRecord(set))
		}
		if err := writeFrame(f, rec); err != nil {
			return errors.WrapIO(err, "seqlog", "Write",
				fmt.Sprintf("append record for sensor %q", label))
		}
	}
	if err := f.Sync(); err != nil {
		return errors.WrapIO(err, "seqlog", "Write", "sync log")
	}
	return nil
}

// Read scans the log to end of stream and reconstructs the model store.
// The returned parameters are the header's global block, already folded
// into every entry. Truncation inside a frame and checksum mismatches are
// corrupt-container failures; clean EOF on a frame boundary terminates the
// scan.
func Read(path string) (model.Parameters, map[string]*model.SensorModelEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Parameters{}, nil, errors.WrapIO(err, "seqlog", "Read", "open log")
	}
	defer f.Close()

	var hdr header
	ok, err := readFrame(f, &hdr)
	if err != nil {
		return model.Parameters{}, nil, err
	}
	if !ok {
		return model.Parameters{}, nil, errors.New(errors.KindCorruptContainer, "seqlog", "Read",
			"empty log, missing header record")
	}
	if hdr.Version != logVersion {
		return model.Parameters{}, nil, errors.New(errors.KindUnsupportedVersion, "seqlog", "Read",
			fmt.Sprintf("unsupported log version %q", hdr.Version))
	}

	models := make(map[string]*model.SensorModelEntry)
	for {
		var rec sensorRecord
		ok, err := readFrame(f, &rec)
		if err != nil {
			return model.Parameters{}, nil, err
		}
		if !ok {
			break
		}
		entry := models[rec.Label]
		if entry == nil {
			entry = &model.SensorModelEntry{Params: hdr.Parameters}
			models[rec.Label] = entry
		}
		for i, r := range rec.Sets {
			set, err := r.toSet(rec.Label, i)
			if err != nil {
				return model.Parameters{}, nil, err
			}
			entry.Sets = append(entry.Sets, set)
		}
	}
	return hdr.Parameters, models, nil
}

// writeFrame appends one length-prefixed, checksummed msgpack record.
func writeFrame(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	var prefix [frameHeaderSize]byte
	binary.BigEndian.PutUint32(prefix[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(prefix[4:8], crc32.ChecksumIEEE(payload))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// readFrame reads the next record into v. It returns ok=false on a clean
// end of stream at a frame boundary.
func readFrame(r io.Reader, v any) (bool, error) {
	var prefix [frameHeaderSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, errors.WrapCorrupt(err, "seqlog", "Read", "read frame prefix")
	}
	size := binary.BigEndian.Uint32(prefix[0:4])
	sum := binary.BigEndian.Uint32(prefix[4:8])
	if size > maxFrameSize {
		return false, errors.New(errors.KindCorruptContainer, "seqlog", "Read",
			fmt.Sprintf("frame length %d exceeds limit", size))
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return false, errors.WrapCorrupt(err, "seqlog", "Read", "read truncated frame")
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return false, errors.New(errors.KindCorruptContainer, "seqlog", "Read",
			"frame checksum mismatch")
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return false, errors.WrapCorrupt(err, "seqlog", "Read", "decode frame payload")
	}
	return true, nil
}

// acquire takes the sidecar file lock for path, returning the release
// function. Writers to the same log must not overlap; the lock scopes the
// whole operation and is released on every exit path.
func acquire(path, op string) (func(), error) {
	fl := flock.New(path + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.WrapIO(err, "seqlog", op, "acquire file lock")
	}
	if !locked {
		return nil, errors.New(errors.KindIO, "seqlog", op,
			"log is locked by another writer")
	}
	return func() { _ = fl.Unlock() }, nil
}
