// Package stata reads Stata .dta files. It supports the classic binary
// headers (formats 113-115) and the tagged format introduced with Stata 13
// (formats 117-118), which covers every release the GeoMet distribution
// has shipped in. Value labels and strLs are not needed for numeric
// panel data and are not decoded.
package stata

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Classic storage type codes (formats 113-115).
const (
	typeByte   = 251
	typeInt    = 252
	typeLong   = 253
	typeFloat  = 254
	typeDouble = 255
)

// Tagged storage type codes (formats 117-118).
const (
	tagStrL   = 32768
	tagDouble = 65526
	tagFloat  = 65527
	tagLong   = 65528
	tagInt    = 65529
	tagByte   = 65530
)

// Missing-value thresholds: Stata encodes ".", ".a".. ".z" as values at
// the top of each numeric type's range.
const (
	missingInt8   = 101
	missingInt16  = 32741
	missingInt32  = 2147483621
	missingFloat  = 1.701e38
	missingDouble = 8.988e307
)

// File is a fully decoded .dta file. Numeric cells are float64 with NaN
// for missing values; string cells are Go strings.
type File struct {
	Names []string
	Rows  [][]any

	cols map[string]int
}

// Column returns the index of a variable name, case-insensitive.
func (f *File) Column(name string) (int, bool) {
	idx, ok := f.cols[strings.ToLower(name)]
	return idx, ok
}

// Float returns a numeric cell by variable name. Missing values and
// string cells report false.
func (f *File) Float(row int, name string) (float64, bool) {
	idx, ok := f.Column(name)
	if !ok || row >= len(f.Rows) {
		return 0, false
	}
	v, ok := f.Rows[row][idx].(float64)
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// String returns a string cell by variable name.
func (f *File) String(row int, name string) (string, bool) {
	idx, ok := f.Column(name)
	if !ok || row >= len(f.Rows) {
		return "", false
	}
	v, ok := f.Rows[row][idx].(string)
	return v, ok
}

// ReadFile reads and decodes a .dta file from disk.
func ReadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "stata: read file")
	}
	return Read(raw)
}

// Read decodes a .dta file from memory.
func Read(raw []byte) (*File, error) {
	if len(raw) < 4 {
		return nil, eris.New("stata: file too short")
	}
	if bytes.HasPrefix(raw, []byte("<stata_dta>")) {
		return readTagged(raw)
	}
	return readClassic(raw)
}

type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) take(n int) ([]byte, error) {
	if c.pos+n > len(c.buf) {
		return nil, eris.Errorf("stata: truncated file (need %d bytes at offset %d)", n, c.pos)
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) skip(n int) error {
	_, err := c.take(n)
	return err
}

func readClassic(raw []byte) (*File, error) {
	c := &cursor{buf: raw}

	hdr, err := c.take(4)
	if err != nil {
		return nil, err
	}
	version := hdr[0]
	if version < 113 || version > 115 {
		return nil, eris.Errorf("stata: unsupported classic format %d", version)
	}
	var order binary.ByteOrder = binary.LittleEndian
	if hdr[1] == 0x01 {
		order = binary.BigEndian
	}

	b, err := c.take(2 + 4)
	if err != nil {
		return nil, err
	}
	nvar := int(order.Uint16(b[0:2]))
	nobs := int(order.Uint32(b[2:6]))

	// data label + timestamp
	if err := c.skip(81 + 18); err != nil {
		return nil, err
	}

	types, err := c.take(nvar)
	if err != nil {
		return nil, err
	}

	names := make([]string, nvar)
	for i := range nvar {
		b, err := c.take(33)
		if err != nil {
			return nil, err
		}
		names[i] = cString(b)
	}

	// sortlist
	if err := c.skip(2 * (nvar + 1)); err != nil {
		return nil, err
	}
	// fmtlist width depends on the release
	fmtWidth := 12
	if version == 114 || version == 115 {
		fmtWidth = 49
	}
	if err := c.skip(fmtWidth * nvar); err != nil {
		return nil, err
	}
	// lbllist + variable labels
	if err := c.skip(33*nvar + 81*nvar); err != nil {
		return nil, err
	}

	// expansion fields: {byte type, int32 len, payload}* terminated by zeros
	for {
		b, err := c.take(5)
		if err != nil {
			return nil, err
		}
		size := int(order.Uint32(b[1:5]))
		if b[0] == 0 && size == 0 {
			break
		}
		if err := c.skip(size); err != nil {
			return nil, err
		}
	}

	rows := make([][]any, 0, nobs)
	for range nobs {
		row := make([]any, nvar)
		for i := range nvar {
			v, err := readClassicCell(c, types[i], order)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return newFile(names, rows), nil
}

func readClassicCell(c *cursor, typ byte, order binary.ByteOrder) (any, error) {
	switch typ {
	case typeByte:
		b, err := c.take(1)
		if err != nil {
			return nil, err
		}
		v := int8(b[0])
		if v >= missingInt8 {
			return math.NaN(), nil
		}
		return float64(v), nil
	case typeInt:
		b, err := c.take(2)
		if err != nil {
			return nil, err
		}
		v := int16(order.Uint16(b))
		if v >= missingInt16 {
			return math.NaN(), nil
		}
		return float64(v), nil
	case typeLong:
		b, err := c.take(4)
		if err != nil {
			return nil, err
		}
		v := int32(order.Uint32(b))
		if v >= missingInt32 {
			return math.NaN(), nil
		}
		return float64(v), nil
	case typeFloat:
		b, err := c.take(4)
		if err != nil {
			return nil, err
		}
		v := float64(math.Float32frombits(order.Uint32(b)))
		if v >= missingFloat {
			return math.NaN(), nil
		}
		return v, nil
	case typeDouble:
		b, err := c.take(8)
		if err != nil {
			return nil, err
		}
		v := math.Float64frombits(order.Uint64(b))
		if v >= missingDouble {
			return math.NaN(), nil
		}
		return v, nil
	default:
		if typ >= 1 && typ <= 244 {
			b, err := c.take(int(typ))
			if err != nil {
				return nil, err
			}
			return cString(b), nil
		}
		return nil, eris.Errorf("stata: unknown storage type %d", typ)
	}
}

func readTagged(raw []byte) (*File, error) {
	release, err := taggedText(raw, "release")
	if err != nil {
		return nil, err
	}
	if release != "117" && release != "118" {
		return nil, eris.Errorf("stata: unsupported tagged format %s", release)
	}
	wide := release == "118" // 118 widens N and variable names

	bo, err := taggedText(raw, "byteorder")
	if err != nil {
		return nil, err
	}
	var order binary.ByteOrder = binary.LittleEndian
	if bo == "MSF" {
		order = binary.BigEndian
	}

	kOff := bytes.Index(raw, []byte("<K>"))
	if kOff < 0 || kOff+5 > len(raw) {
		return nil, eris.New("stata: missing <K> header")
	}
	nvar := int(order.Uint16(raw[kOff+3 : kOff+5]))

	nOff := bytes.Index(raw, []byte("<N>"))
	if nOff < 0 {
		return nil, eris.New("stata: missing <N> header")
	}
	var nobs int
	if wide {
		nobs = int(order.Uint64(raw[nOff+3 : nOff+11]))
	} else {
		nobs = int(order.Uint32(raw[nOff+3 : nOff+7]))
	}

	// The <map> section carries 14 absolute offsets; the ones used here
	// are variable_types (2), varnames (3), and data (9).
	mapOff := bytes.Index(raw, []byte("<map>"))
	if mapOff < 0 || mapOff+5+14*8 > len(raw) {
		return nil, eris.New("stata: missing <map> section")
	}
	offs := make([]int, 14)
	for i := range offs {
		offs[i] = int(order.Uint64(raw[mapOff+5+i*8 : mapOff+5+(i+1)*8]))
	}

	tc := &cursor{buf: raw, pos: offs[2] + len("<variable_types>")}
	types := make([]uint16, nvar)
	for i := range nvar {
		b, err := tc.take(2)
		if err != nil {
			return nil, err
		}
		types[i] = order.Uint16(b)
	}

	nameWidth := 33
	if wide {
		nameWidth = 129
	}
	nc := &cursor{buf: raw, pos: offs[3] + len("<varnames>")}
	names := make([]string, nvar)
	for i := range nvar {
		b, err := nc.take(nameWidth)
		if err != nil {
			return nil, err
		}
		names[i] = cString(b)
	}

	dc := &cursor{buf: raw, pos: offs[9] + len("<data>")}
	rows := make([][]any, 0, nobs)
	for range nobs {
		row := make([]any, nvar)
		for i := range nvar {
			v, err := readTaggedCell(dc, types[i], order)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return newFile(names, rows), nil
}

func readTaggedCell(c *cursor, typ uint16, order binary.ByteOrder) (any, error) {
	switch typ {
	case tagByte:
		return readClassicCell(c, typeByte, order)
	case tagInt:
		return readClassicCell(c, typeInt, order)
	case tagLong:
		return readClassicCell(c, typeLong, order)
	case tagFloat:
		return readClassicCell(c, typeFloat, order)
	case tagDouble:
		return readClassicCell(c, typeDouble, order)
	case tagStrL:
		return nil, eris.New("stata: strL variables are not supported")
	default:
		if typ >= 1 && typ <= 2045 {
			b, err := c.take(int(typ))
			if err != nil {
				return nil, err
			}
			return cString(b), nil
		}
		return nil, eris.Errorf("stata: unknown storage type %d", typ)
	}
}

func taggedText(raw []byte, tag string) (string, error) {
	open := []byte("<" + tag + ">")
	closing := []byte("</" + tag + ">")
	start := bytes.Index(raw, open)
	if start < 0 {
		return "", eris.Errorf("stata: missing <%s> header", tag)
	}
	start += len(open)
	end := bytes.Index(raw[start:], closing)
	if end < 0 {
		return "", eris.Errorf("stata: unterminated <%s> header", tag)
	}
	return string(raw[start : start+end]), nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

func newFile(names []string, rows [][]any) *File {
	cols := make(map[string]int, len(names))
	for i, n := range names {
		cols[strings.ToLower(n)] = i
	}
	return &File{Names: names, Rows: rows, cols: cols}
}
