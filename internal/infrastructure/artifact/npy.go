package artifact

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

const (
	npyMagic = "\x93NUMPY"
	// maxNPYElements ограничивает размер буфера, который может запросить заголовок.
	maxNPYElements = 1 << 30
)

var (
	npyDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// DecodeNPY читает двумерный массив NumPy (.npy v1/v2/v3, '<f4' или '<f8', C-порядок).
func DecodeNPY(r io.Reader) (*retrieval.Matrix, error) {
	br := bufio.NewReader(r)

	header, err := readNPYHeader(br)
	if err != nil {
		return nil, err
	}

	descr, rows, cols, err := parseNPYHeader(header)
	if err != nil {
		return nil, err
	}

	var itemSize int
	switch descr {
	case "<f4":
		itemSize = 4
	case "<f8":
		itemSize = 8
	default:
		return nil, fmt.Errorf("%w: dtype %q, want <f4 or <f8", e.ErrMalformedVectors, descr)
	}

	if rows < 0 || cols <= 0 || rows > maxNPYElements/cols {
		return nil, fmt.Errorf("%w: shape (%d, %d)", e.ErrMalformedVectors, rows, cols)
	}

	raw := make([]byte, rows*cols*itemSize)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, fmt.Errorf("%w: data truncated: %v", e.ErrMalformedVectors, err)
	}

	data := make([]float32, rows*cols)
	if itemSize == 4 {
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	} else {
		for i := range data {
			data[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	}

	return retrieval.NewMatrix(rows, cols, data)
}

func readNPYHeader(r io.Reader) (string, error) {
	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return "", fmt.Errorf("%w: short preamble: %v", e.ErrMalformedVectors, err)
	}
	if !bytes.Equal(prefix[:len(npyMagic)], []byte(npyMagic)) {
		return "", fmt.Errorf("%w: bad magic", e.ErrMalformedVectors)
	}

	var headerLen int
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return "", fmt.Errorf("%w: header length: %v", e.ErrMalformedVectors, err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return "", fmt.Errorf("%w: header length: %v", e.ErrMalformedVectors, err)
		}
		headerLen = int(n)
	default:
		return "", fmt.Errorf("%w: format version %d", e.ErrMalformedVectors, major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return "", fmt.Errorf("%w: header truncated: %v", e.ErrMalformedVectors, err)
	}

	return string(header), nil
}

func parseNPYHeader(header string) (descr string, rows, cols int, err error) {
	m := npyDescr.FindStringSubmatch(header)
	if m == nil {
		return "", 0, 0, fmt.Errorf("%w: no descr in header", e.ErrMalformedVectors)
	}
	descr = m[1]

	if f := npyFortran.FindStringSubmatch(header); f == nil || f[1] != "False" {
		return "", 0, 0, fmt.Errorf("%w: only C-order arrays are supported", e.ErrMalformedVectors)
	}

	s := npyShape.FindStringSubmatch(header)
	if s == nil {
		return "", 0, 0, fmt.Errorf("%w: no shape in header", e.ErrMalformedVectors)
	}

	dims := make([]int, 0, 2)
	for _, part := range strings.Split(s[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, convErr := strconv.Atoi(part)
		if convErr != nil {
			return "", 0, 0, fmt.Errorf("%w: shape %q", e.ErrMalformedVectors, s[1])
		}
		dims = append(dims, n)
	}
	if len(dims) != 2 {
		return "", 0, 0, fmt.Errorf("%w: want 2-D array, got shape (%s)", e.ErrMalformedVectors, s[1])
	}

	return descr, dims[0], dims[1], nil
}
