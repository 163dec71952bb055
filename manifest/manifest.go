/*Package manifest owns the on-disk record of one sweep.

A run lives in its own dated, auto-numbered directory under the configured
base folder.  Raw signal frames (FITS) and background-subtracted spectra
(plain text) go into Raw_Data/; run-level metadata is written once as
run.yml; and manifest.jsonl is the append-only source of truth, one JSON
record per scan point.

Each manifest record carries a CRC over its own payload, and every append
is synced before the sweep moves on.  A crash mid-write therefore leaves at
worst one torn final line, which Load detects and drops; everything before
it is a valid, fully-formed prefix of the run.
*/
package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/snksoft/crc"
	"gopkg.in/yaml.v2"

	"github.com/opal-photonics/asesweep/spectra"
)

const (
	rawDirName   = "Raw_Data"
	manifestName = "manifest.jsonl"
	metaName     = "run.yml"
)

var crcTable = crc.NewTable(crc.XMODEM)

// Point statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Meta is the run-level metadata, written once at creation.
type Meta struct {
	Created          time.Time `yaml:"created"`
	TargetWavelength float64   `yaml:"targetWavelengthNM"`
	GratingIndex     int       `yaml:"gratingIndex"`
	StartAngle       float64   `yaml:"startAngle"`
	EndAngle         float64   `yaml:"endAngle"`
	Points           int       `yaml:"points"`
	PresetsS         []float64 `yaml:"integrationPresetsS"`
}

// Record is one manifest line: the outcome of one scan point.
type Record struct {
	Index            int       `json:"index"`
	Angle            float64   `json:"angle"`
	IntegrationTime  float64   `json:"integrationTimeS,omitempty"`
	Status           string    `json:"status"`
	Reason           string    `json:"reason,omitempty"`
	MaxCounts        float64   `json:"maxCounts,omitempty"`
	BackgroundCached bool      `json:"backgroundCached,omitempty"`
	SignalFile       string    `json:"signalFile,omitempty"`
	NetFile          string    `json:"netFile,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Check            string    `json:"crc,omitempty"`
}

// checksum computes the CRC hex word for a record's canonical JSON with the
// Check field cleared.
func checksum(rec Record) (string, error) {
	rec.Check = ""
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	c := crcTable.InitCrc()
	c = crcTable.UpdateCrc(c, b)
	return fmt.Sprintf("%04X", crcTable.CRC16(c)), nil
}

// Run is an open, writable run directory.  It has exactly one writer.
type Run struct {
	// Dir is the run directory.
	Dir string

	// RawDir is the Raw_Data subdirectory.
	RawDir string

	meta Meta
	f    *os.File
	date string
	n    int
}

// Create bootstraps a new run directory under base: the first unused
// YYYYMMDD_Measurement_N name, with Raw_Data/, run.yml and an empty
// manifest.
func Create(base string, meta Meta) (*Run, error) {
	err := os.MkdirAll(base, 0777)
	if err != nil {
		return nil, errors.Wrap(err, "manifest: base directory")
	}
	if meta.Created.IsZero() {
		meta.Created = time.Now()
	}
	date := meta.Created.Format("20060102")
	var dir string
	for i := 1; ; i++ {
		dir = filepath.Join(base, fmt.Sprintf("%s_Measurement_%d", date, i))
		err = os.Mkdir(dir, 0777)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return nil, errors.Wrap(err, "manifest: run directory")
		}
	}
	raw := filepath.Join(dir, rawDirName)
	if err := os.MkdirAll(raw, 0777); err != nil {
		return nil, errors.Wrap(err, "manifest: raw data directory")
	}

	mf, err := os.Create(filepath.Join(dir, metaName))
	if err != nil {
		return nil, err
	}
	err = yaml.NewEncoder(mf).Encode(meta)
	mf.Close()
	if err != nil {
		return nil, errors.Wrap(err, "manifest: metadata")
	}

	f, err := os.OpenFile(filepath.Join(dir, manifestName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return &Run{Dir: dir, RawDir: raw, meta: meta, f: f, date: date}, nil
}

// Meta returns the run metadata.
func (r *Run) Meta() Meta {
	return r.meta
}

// Len returns the number of records appended so far.
func (r *Run) Len() int {
	return r.n
}

// Append durably writes one record.  The CRC is filled in here; the write
// is synced before returning so a later crash cannot lose it.
func (r *Run) Append(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	check, err := checksum(rec)
	if err != nil {
		return err
	}
	rec.Check = check
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = r.f.Write(b)
	if err != nil {
		return errors.Wrap(err, "manifest: append")
	}
	err = r.f.Sync()
	if err != nil {
		return errors.Wrap(err, "manifest: sync")
	}
	r.n++
	return nil
}

// SavePoint writes the raw signal frame (FITS) and the net frame (text)
// for one successful scan point and returns a partially filled record; the
// caller sets status fields and calls Append.
func (r *Run) SavePoint(index int, sig, net spectra.Frame) (Record, error) {
	base := fmt.Sprintf("%s_spectrum_%03d_angle_%.2fdeg_t_%gs", r.date, index, sig.Angle, sig.IntegrationTime)
	rec := Record{
		Index:           index,
		Angle:           sig.Angle,
		IntegrationTime: sig.IntegrationTime,
		MaxCounts:       sig.Max(),
		SignalFile:      base + ".fits",
		NetFile:         base + "_subtracted.txt",
	}

	ff, err := os.Create(filepath.Join(r.RawDir, rec.SignalFile))
	if err != nil {
		return rec, err
	}
	err = spectra.WriteFits(ff, sig)
	ff.Close()
	if err != nil {
		return rec, errors.Wrap(err, "manifest: signal fits")
	}

	tf, err := os.Create(filepath.Join(r.RawDir, rec.NetFile))
	if err != nil {
		return rec, err
	}
	err = spectra.WriteTXT(tf, net)
	tf.Close()
	if err != nil {
		return rec, errors.Wrap(err, "manifest: net txt")
	}
	return rec, nil
}

// Close closes the manifest file.
func (r *Run) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// Load reads a run directory back.  Records with a bad or missing CRC, and
// a torn trailing line, are dropped; everything returned is fully formed
// and in append order.
func Load(dir string) (Meta, []Record, error) {
	var meta Meta
	mb, err := os.ReadFile(filepath.Join(dir, metaName))
	if err != nil {
		return meta, nil, err
	}
	if err := yaml.Unmarshal(mb, &meta); err != nil {
		return meta, nil, errors.Wrap(err, "manifest: metadata")
	}

	f, err := os.Open(filepath.Join(dir, manifestName))
	if err != nil {
		return meta, nil, err
	}
	defer f.Close()

	var recs []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// torn or corrupt line; the valid prefix ends here
			break
		}
		want, err := checksum(rec)
		if err != nil || rec.Check != want {
			break
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return meta, recs, err
	}
	return meta, recs, nil
}
