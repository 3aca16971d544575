package waveform

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Supported formats.
const (
	FormatCSV  = "csv"
	FormatPHM  = "phm"
	FormatJSON = "json"
)

// PHM 2012 channel columns and nominal sampling rate.
const (
	PHMHorizontalColumn = 4
	PHMVerticalColumn   = 5
	PHMSamplingRate     = 25600
)

// ErrNoSamples is returned when a capture decodes to zero samples.
var ErrNoSamples = errors.New("waveform: no samples")

// ErrTooManySamples is returned when a capture exceeds Options.MaxSamples.
var ErrTooManySamples = errors.New("waveform: too many samples")

// Options select how a capture is decoded.
type Options struct {
	Format string
	// Column is the zero-based CSV column (csv only).
	Column int
	// Axis is horizontal or vertical (phm only). Empty means horizontal.
	Axis string
	// MaxSamples rejects longer captures when positive.
	MaxSamples int
}

// Waveform is one decoded capture. SamplingRate and Velocity are zero when
// the format does not carry them.
type Waveform struct {
	Samples      []float64 `json:"samples"`
	SamplingRate int       `json:"sampling_rate"`
	Velocity     float64   `json:"velocity"`
}

// ApplyDefaults fills a zero SamplingRate or Velocity from the given values.
func (w *Waveform) ApplyDefaults(samplingRate int, velocity float64) {
	if w.SamplingRate == 0 {
		w.SamplingRate = samplingRate
	}
	if w.Velocity == 0 {
		w.Velocity = velocity
	}
}

// Decode reads one capture from r.
func Decode(r io.Reader, opts Options) (Waveform, error) {
	var (
		w   Waveform
		err error
	)
	switch opts.Format {
	case FormatCSV, "":
		w.Samples, err = decodeColumn(r, opts.Column, opts.MaxSamples)
	case FormatPHM:
		col := PHMHorizontalColumn
		switch opts.Axis {
		case "", "horizontal":
		case "vertical":
			col = PHMVerticalColumn
		default:
			return Waveform{}, fmt.Errorf("waveform: unknown phm axis %q", opts.Axis)
		}
		w.Samples, err = decodeColumn(r, col, opts.MaxSamples)
		w.SamplingRate = PHMSamplingRate
	case FormatJSON:
		w, err = decodeJSON(r, opts.MaxSamples)
	default:
		return Waveform{}, fmt.Errorf("waveform: unknown format %q", opts.Format)
	}
	if err != nil {
		return Waveform{}, err
	}
	if len(w.Samples) == 0 {
		return Waveform{}, ErrNoSamples
	}
	return w, nil
}

// decodeColumn reads column col of a delimited text file. The delimiter is
// sniffed from the first line.
func decodeColumn(r io.Reader, col, maxSamples int) ([]float64, error) {
	if col < 0 {
		return nil, fmt.Errorf("waveform: negative column %d", col)
	}
	br := bufio.NewReader(r)
	head, _ := br.Peek(4096)

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var out []float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("waveform: read line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if col >= len(rec) {
			return nil, fmt.Errorf("waveform: line %d has %d columns, need column %d", line, len(rec), col)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			if line == 1 && len(out) == 0 {
				continue // header
			}
			return nil, fmt.Errorf("waveform: line %d column %d: %w", line, col, err)
		}
		if maxSamples > 0 && len(out) >= maxSamples {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManySamples, maxSamples)
		}
		out = append(out, v)
	}
	return out, nil
}

func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	switch {
	case bytes.IndexByte(head, ',') >= 0:
		return ','
	case bytes.IndexByte(head, ';') >= 0:
		return ';'
	case bytes.IndexByte(head, '\t') >= 0:
		return '\t'
	default:
		return ','
	}
}

func decodeJSON(r io.Reader, maxSamples int) (Waveform, error) {
	var w Waveform
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return Waveform{}, fmt.Errorf("waveform: decode json: %w", err)
	}
	if maxSamples > 0 && len(w.Samples) > maxSamples {
		return Waveform{}, fmt.Errorf("%w: %d > %d", ErrTooManySamples, len(w.Samples), maxSamples)
	}
	return w, nil
}
